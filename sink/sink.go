// Export sinks receive the record lines of a store export.
//
// A sink takes the lines as-is, one JSON object per line, and is responsible for where they end
// up.  The store depends only on the Write contract, so sinks compose freely with it.

package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

type Sink interface {
	Write(lines [][]byte) error
}

// A FileSink writes newline-terminated lines to an io.Writer.

type FileSink struct {
	w io.Writer
}

func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{w: w}
}

func (fs *FileSink) Write(lines [][]byte) error {
	w := bufio.NewWriter(fs.w)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("Export write failed: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("Export write failed: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("Export write failed: %w", err)
	}
	return nil
}

// WriteFile exports lines to a named file, creating or truncating it.

func WriteFile(path string, lines [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Cannot create output file: %w", err)
	}
	defer f.Close()
	if err := NewFileSink(f).Write(lines); err != nil {
		return err
	}
	return f.Close()
}
