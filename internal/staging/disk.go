package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DiskStager stages uploads on the local filesystem. Staged files are
// reachable at <publicBaseURL>/uploads/<name>, served by the API's
// read-only file handler.
type DiskStager struct {
	dir           string
	publicBaseURL string
	maxBytes      int64
}

// NewDiskStager creates the uploads directory if needed.
func NewDiskStager(dir, publicBaseURL string, maxBytes int64) (*DiskStager, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStager{
		dir:           dir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		maxBytes:      maxBytes,
	}, nil
}

// Dir returns the staging directory, for mounting the file handler.
func (s *DiskStager) Dir() string {
	return s.dir
}

// Stage validates the upload and writes it under a unique name.
func (s *DiskStager) Stage(ctx context.Context, up Upload) (*StagedFile, error) {
	if err := validate(up, s.maxBytes); err != nil {
		return nil, err
	}

	name := uniqueName(up.Filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(up.Reader, s.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: file size exceeds limit of %d bytes", ErrRejected, s.maxBytes)
	}

	log.Debug().
		Str("file", name).
		Int64("size", written).
		Msg("Staged upload on disk")

	return &StagedFile{
		Key:  name,
		Path: path,
		URL:  fmt.Sprintf("%s/uploads/%s", s.publicBaseURL, name),
		Size: written,
	}, nil
}

// Open returns a reader over the staged bytes.
func (s *DiskStager) Open(ctx context.Context, f *StagedFile) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Release removes the staged file. Missing files are ignored so the
// call stays idempotent.
func (s *DiskStager) Release(ctx context.Context, f *StagedFile) error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release staged file: %w", err)
	}
	if err == nil {
		log.Debug().Str("file", f.Key).Msg("Released staged file")
	}
	return nil
}
