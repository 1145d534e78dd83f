package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestForEachLineSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dividends.csv",
		"NASDAQ,AAPL,2020-01-02,0.77\n\nNASDAQ,AAPL,2020-02-07,0.77\n")

	var lines []string
	require.NoError(t, forEachLine(path, func(line string) error {
		lines = append(lines, line)
		return nil
	}))

	assert.Equal(t, []string{
		"NASDAQ,AAPL,2020-01-02,0.77",
		"NASDAQ,AAPL,2020-02-07,0.77",
	}, lines)
}

func TestForEachLineDirectoryInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "part-01.csv", "second\n")
	writeFile(t, dir, "part-00.csv", "first\n")
	writeFile(t, dir, ".hidden", "skipped\n")

	var lines []string
	require.NoError(t, forEachLine(dir, func(line string) error {
		lines = append(lines, line)
		return nil
	}))

	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestForEachLineEmptyDirectory(t *testing.T) {
	err := forEachLine(t.TempDir(), func(string) error { return nil })
	assert.Error(t, err)
}

func TestForEachLineMissingPath(t *testing.T) {
	err := forEachLine(filepath.Join(t.TempDir(), "nope"), func(string) error { return nil })
	assert.Error(t, err)
}

func TestForEachLineStopsOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dividends.csv",
		"NASDAQ,AAPL,2020-01-02,0.77\nNASDAQ,AAPL,broken\nNASDAQ,AAPL,2020-02-07,0.77\n")

	parsed := 0
	err := forEachLine(path, func(line string) error {
		_, parseErr := protocol.ParseDividendLine(line)
		if parseErr != nil {
			return parseErr
		}
		parsed++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 1, parsed, "parsing must stop at the first malformed line")
}
