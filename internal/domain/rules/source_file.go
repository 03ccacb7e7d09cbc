package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSource reads rules from a JSON or YAML document on disk. The file is
// read on every Load call.
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a FileSource. An empty format is inferred from the
// file extension.
func NewFileSource(path string, format Format) *FileSource {
	if format == "" {
		format = FormatFromPath(path)
	}
	return &FileSource{path: path, format: format}
}

func (s *FileSource) Name() string { return s.path }

// Path returns the file the source reads from.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(ctx context.Context) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Source: s.path, Err: err}
		}
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return Decode(s.path, b, s.format)
}
