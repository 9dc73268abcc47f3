package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
)

// FileStore appends one JSON object per line and fsyncs after each record.
// A line cut short by a crash is skipped on load.
type FileStore struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	if err := terminateLastLine(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to repair history %s: %w", path, err)
	}
	return &FileStore{path: path, f: f}, nil
}

// terminateLastLine makes sure a partial trailing record cannot swallow the
// next append.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

func (s *FileStore) Load(ctx context.Context) ([]overlay.TranslationRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", s.path, err)
	}
	defer f.Close()

	return decodeLines(f, s.path)
}

func decodeLines(r io.Reader, name string) ([]overlay.TranslationRecord, error) {
	var records []overlay.TranslationRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec overlay.TranslationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("Skipping unreadable history record", "file", name, "line", lineNo, "err", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read history %s: %w", name, err)
	}
	return records, nil
}

func (s *FileStore) Append(ctx context.Context, rec overlay.TranslationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return s.f.Sync()
}

func (s *FileStore) Close() error {
	return s.f.Close()
}
