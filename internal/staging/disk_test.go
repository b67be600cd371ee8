package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
)

func newTestStager(t *testing.T, maxBytes int64) *DiskStager {
	t.Helper()
	s, err := NewDiskStager(t.TempDir(), "http://localhost:5000", maxBytes)
	if err != nil {
		t.Fatalf("NewDiskStager: %v", err)
	}
	return s
}

func TestStageValidation(t *testing.T) {
	s := newTestStager(t, 1024)

	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int64
		wantReject  bool
	}{
		{
			name:        "Valid png upload",
			filename:    "wound.png",
			contentType: "image/png",
			size:        10,
			wantReject:  false,
		},
		{
			name:        "Valid video upload",
			filename:    "wound.mp4",
			contentType: "video/mp4",
			size:        10,
			wantReject:  false,
		},
		{
			name:        "Executable extension rejected",
			filename:    "malware.exe",
			contentType: "image/png",
			size:        10,
			wantReject:  true,
		},
		{
			name:        "Spoofed MIME type rejected despite extension",
			filename:    "wound.png",
			contentType: "application/octet-stream",
			size:        10,
			wantReject:  true,
		},
		{
			name:        "Oversized upload rejected",
			filename:    "wound.png",
			contentType: "image/png",
			size:        2048,
			wantReject:  true,
		},
		{
			name:        "Extension case is folded",
			filename:    "wound.PNG",
			contentType: "image/png",
			size:        10,
			wantReject:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staged, err := s.Stage(context.Background(), Upload{
				Reader:      strings.NewReader(strings.Repeat("x", int(tt.size))),
				Filename:    tt.filename,
				ContentType: tt.contentType,
				Size:        tt.size,
			})

			if tt.wantReject {
				if !errors.Is(err, ErrRejected) {
					t.Fatalf("Expected ErrRejected, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if _, statErr := os.Stat(staged.Path); statErr != nil {
				t.Errorf("Staged file missing: %v", statErr)
			}
		})
	}
}

func TestStageUniqueNamesUnderConcurrency(t *testing.T) {
	s := newTestStager(t, 0)

	const n = 32
	var wg sync.WaitGroup
	paths := make(chan string, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			staged, err := s.Stage(context.Background(), Upload{
				Reader:      strings.NewReader("same bytes"),
				Filename:    "wound.png", // identical original name on purpose
				ContentType: "image/png",
				Size:        10,
			})
			if err != nil {
				errs <- err
				return
			}
			paths <- staged.Path
		}()
	}
	wg.Wait()
	close(paths)
	close(errs)

	for err := range errs {
		t.Fatalf("Concurrent staging failed: %v", err)
	}

	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Fatalf("Duplicate staged path: %s", p)
		}
		seen[p] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d staged files, got %d", n, len(seen))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := newTestStager(t, 0)

	staged, err := s.Stage(context.Background(), Upload{
		Reader:      strings.NewReader("bytes"),
		Filename:    "wound.jpg",
		ContentType: "image/jpeg",
		Size:        5,
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	if err := s.Release(context.Background(), staged); err != nil {
		t.Fatalf("First release: %v", err)
	}
	if err := s.Release(context.Background(), staged); err != nil {
		t.Fatalf("Second release should be a no-op, got: %v", err)
	}
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Error("Staged file still present after release")
	}
}

func TestOpenRoundTrip(t *testing.T) {
	s := newTestStager(t, 0)

	content := "wound image bytes"
	staged, err := s.Stage(context.Background(), Upload{
		Reader:      strings.NewReader(content),
		Filename:    "wound.bmp",
		ContentType: "image/bmp",
		Size:        int64(len(content)),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if staged.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), staged.Size)
	}
	if want := fmt.Sprintf("http://localhost:5000/uploads/%s", staged.Key); staged.URL != want {
		t.Errorf("Expected URL %s, got %s", want, staged.URL)
	}

	rc, err := s.Open(context.Background(), staged)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read staged file: %v", err)
	}
	if string(got) != content {
		t.Errorf("Expected %q, got %q", content, got)
	}
}
