package storage

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
)

// OutputWriter writes the final joined rows as delimited text. Pre-existing
// output at the path is cleared before each run.
type OutputWriter struct {
	path string
	mu   sync.Mutex
}

// NewOutputWriter creates a writer for the given output path.
func NewOutputWriter(path string) *OutputWriter {
	return &OutputWriter{path: path}
}

// Path returns the output location.
func (w *OutputWriter) Path() string {
	return w.path
}

// Clear removes any output left over from a previous run.
func (w *OutputWriter) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear output %s: %w", w.path, err)
	}
	return nil
}

// Write persists the joined rows, one "symbol|date<TAB>close" line per row,
// replacing whatever was at the output path.
func (w *OutputWriter) Write(rows []*protocol.JoinedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmpPath := w.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create output temp file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, row := range rows {
		if _, err := writer.WriteString(row.OutputLine() + "\n"); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write output row: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush output: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename output file: %w", err)
	}

	log.Printf("action: write_output | result: success | path: %s | rows: %d", w.path, len(rows))

	return nil
}
