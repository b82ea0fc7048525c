package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/and161185/speedcube/internal/errs"
	"github.com/and161185/speedcube/internal/model"
)

// RecordsService serves the world-record statistics document.
type RecordsService interface {
	WorldRecords(ctx context.Context) (model.WorldRecords, error)
}

// FileRecords reads the document from a JSON file on every call so edits
// to the file are picked up without a restart.
type FileRecords struct {
	path string
}

// NewFileRecords constructs a RecordsService backed by path.
func NewFileRecords(path string) *FileRecords { return &FileRecords{path: path} }

func (r *FileRecords) WorldRecords(ctx context.Context) (model.WorldRecords, error) {
	if err := ctx.Err(); err != nil {
		return model.WorldRecords{}, err
	}
	if r.path == "" {
		return model.WorldRecords{}, fmt.Errorf("%w: records file not configured", errs.ErrUnavailable)
	}
	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.WorldRecords{}, fmt.Errorf("%w: records file not found", errs.ErrUnavailable)
		}
		return model.WorldRecords{}, fmt.Errorf("read records: %w", err)
	}
	var out model.WorldRecords
	if err := json.Unmarshal(b, &out); err != nil {
		return model.WorldRecords{}, fmt.Errorf("%w: decode records: %v", errs.ErrUnavailable, err)
	}
	if out.Records == nil {
		out.Records = map[string]model.EventRecords{}
	}
	return out, nil
}
