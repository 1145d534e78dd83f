package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRawLine(t *testing.T) {
	assert.Equal(t, []string{"NASDAQ", "AAPL", "2020-01-02", "0.77"},
		SplitRawLine("NASDAQ,AAPL,2020-01-02,0.77"))
}

func TestSplitRawLineEscapedComma(t *testing.T) {
	assert.Equal(t, []string{"Apple, Inc.", "AAPL"},
		SplitRawLine(`Apple\, Inc.,AAPL`))
}

func TestSplitRawLineEmptyFields(t *testing.T) {
	assert.Equal(t, []string{"", "AAPL", ""}, SplitRawLine(",AAPL,"))
	assert.Equal(t, []string{""}, SplitRawLine(""))
}

func TestSplitRawLineTrailingBackslash(t *testing.T) {
	assert.Equal(t, []string{"a", `b\`}, SplitRawLine(`a,b\`))
}

func TestSplitRawLineEscapedBackslash(t *testing.T) {
	assert.Equal(t, []string{`a\b`, "c"}, SplitRawLine(`a\\b,c`))
}

func TestParseDividendLine(t *testing.T) {
	record, err := ParseDividendLine("NASDAQ,AAPL,2020-01-02,0.77")
	require.NoError(t, err)

	assert.Equal(t, "NASDAQ", record.Exchange)
	assert.Equal(t, "AAPL", record.Symbol)
	assert.Equal(t, "2020-01-02", record.Date)
	assert.Equal(t, 0.77, record.Dividend)
}

func TestParseDividendLineMalformed(t *testing.T) {
	_, err := ParseDividendLine("NASDAQ,AAPL,2020-01-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NASDAQ,AAPL,2020-01-02", "error must carry the offending line")

	_, err = ParseDividendLine("NASDAQ,AAPL,2020-01-02,not-a-number")
	assert.Error(t, err)
}

func TestParseStockLine(t *testing.T) {
	record, err := ParseStockLine("NASDAQ,AAPL,2020-01-02,74.06,75.15,73.7975,75.0875,135480400,74.333511")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", record.Symbol)
	assert.Equal(t, "2020-01-02", record.Date)
	assert.Equal(t, 75.0875, record.Close)
	assert.Equal(t, "135480400", record.Volume)
}

func TestParseStockLineMalformed(t *testing.T) {
	_, err := ParseStockLine("NASDAQ,AAPL,2020-01-02,74.06,75.15")
	assert.Error(t, err)

	_, err = ParseStockLine("NASDAQ,AAPL,2020-01-02,74.06,75.15,73.7975,bad,135480400,74.333511")
	assert.Error(t, err)
}
