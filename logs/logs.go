package logs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

const fileName = "logs.txt"

// InitializeFileLogger redirects the standard logger into a logs file in the given directory.
// The returned closer restores logging to stderr.
func InitializeFileLogger(dir string) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("couldn't create %s directory: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("couldn't create logs file: %w", err)
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return &fileLogger{file: f}, nil
}

type fileLogger struct {
	file *os.File
}

func (l *fileLogger) Close() error {
	log.SetOutput(os.Stderr)
	return l.file.Close()
}

// Discard silences the standard logger.
func Discard() {
	log.SetOutput(io.Discard)
}
