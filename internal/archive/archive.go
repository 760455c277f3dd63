// Package archive uploads a finished run's artifacts to durable storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// BlobStore is the destination for archived artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Archiver copies run artifacts into a blob store under a per-run prefix.
type Archiver struct {
	store  BlobStore
	logger *zap.Logger
}

// New builds an Archiver.
func New(store BlobStore, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, logger: logger}
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".json": "application/json",
}

// ArchiveRun uploads the named files under runs/<runID>/. Missing files are
// skipped: a run interrupted before stage 3 simply has fewer artifacts.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, paths []string) ([]string, error) {
	var uris []string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return uris, fmt.Errorf("open artifact %s: %w", path, err)
		}

		dest := fmt.Sprintf("runs/%s/%s", runID, filepath.Base(path))
		uri, err := a.store.PutObject(ctx, dest, contentTypes[filepath.Ext(path)], f)
		closeErr := f.Close()
		if err != nil {
			return uris, fmt.Errorf("upload artifact %s: %w", path, err)
		}
		if closeErr != nil {
			return uris, fmt.Errorf("close artifact %s: %w", path, closeErr)
		}

		a.logger.Info("Artifact archived", zap.String("path", path), zap.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, nil
}
