package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRejected wraps every validation failure so callers can map the
// whole class to an invalid-upload response.
var ErrRejected = errors.New("upload rejected")

// DefaultMaxUploadBytes is the staging size ceiling (100 MiB).
const DefaultMaxUploadBytes = 100 * 1024 * 1024

// allowedExtensions lists the accepted image and video containers.
var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Upload describes an incoming media file before it is staged.
type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// StagedFile is the durable handle for staged media. Key is the
// backend-local name, URL the externally reachable media reference.
// Path is set by the disk backend only.
type StagedFile struct {
	Key  string
	Path string
	URL  string
	Size int64
}

// Stager validates and persists uploads, hands out read access for the
// inference call, and releases staged bytes when a pipeline run fails.
type Stager interface {
	Stage(ctx context.Context, up Upload) (*StagedFile, error)
	Open(ctx context.Context, f *StagedFile) (io.ReadCloser, error)
	// Release deletes the staged bytes. Releasing an already released
	// file is not an error.
	Release(ctx context.Context, f *StagedFile) error
}

// validate applies both upload checks independently: the extension must
// be on the allow-list AND the declared MIME type must be image/* or
// video/*. Either failing rejects the upload.
func validate(up Upload, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: file extension %q is not an accepted image or video type", ErrRejected, ext)
	}

	ct := strings.ToLower(up.ContentType)
	if !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		return fmt.Errorf("%w: content type %q is not image or video", ErrRejected, up.ContentType)
	}

	if maxBytes > 0 && up.Size > maxBytes {
		return fmt.Errorf("%w: file size %d exceeds limit of %d bytes", ErrRejected, up.Size, maxBytes)
	}

	return nil
}

// uniqueName builds a collision-free staged name: nanosecond prefix,
// random suffix, then the sanitized original name for traceability.
func uniqueName(original string) string {
	base := filepath.Base(original)
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], base)
}
