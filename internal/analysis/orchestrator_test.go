package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/dal"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/inference"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/staging"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// failingStore wraps the memory store and fails every history append.
type failingStore struct {
	patient.Store
}

func (s *failingStore) AppendAnalysis(ctx context.Context, email string, rec patient.AnalysisRecord) (*patient.Record, error) {
	return nil, fmt.Errorf("simulated write failure")
}

// brokenStager simulates a staging backend that cannot take or return
// bytes: a full disk or an unreachable object store.
type brokenStager struct {
	inner    staging.Stager
	stageErr error
	openErr  error
}

func (s *brokenStager) Stage(ctx context.Context, up staging.Upload) (*staging.StagedFile, error) {
	if s.stageErr != nil {
		return nil, s.stageErr
	}
	return s.inner.Stage(ctx, up)
}

func (s *brokenStager) Open(ctx context.Context, f *staging.StagedFile) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.inner.Open(ctx, f)
}

func (s *brokenStager) Release(ctx context.Context, f *staging.StagedFile) error {
	return s.inner.Release(ctx, f)
}

type orchestratorFixture struct {
	orch      *Orchestrator
	store     *dal.MemoryStore
	uploadDir string
	inference *httptest.Server
	called    *atomic.Bool
}

func newFixture(t *testing.T, handler http.HandlerFunc) *orchestratorFixture {
	t.Helper()

	dir := t.TempDir()
	stager, err := staging.NewDiskStager(dir, "http://localhost:5000", 0)
	if err != nil {
		t.Fatalf("NewDiskStager: %v", err)
	}

	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store := dal.NewMemoryStore()
	if _, err := store.Create(context.Background(), "jane@example.com", "Jane"); err != nil {
		t.Fatalf("Seed store: %v", err)
	}

	return &orchestratorFixture{
		orch: &Orchestrator{
			Store:     store,
			Stager:    stager,
			Inference: inference.NewClient(srv.URL, time.Second),
			Clock:     fixedClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		},
		store:     store,
		uploadDir: dir,
		inference: srv,
		called:    &called,
	}
}

func (f *orchestratorFixture) stagedFileCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.uploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func pngUpload(content string) staging.Upload {
	return staging.Upload{
		Reader:      strings.NewReader(content),
		Filename:    "wound.png",
		ContentType: "image/png",
		Size:        int64(len(content)),
	}
}

func okInference(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"result":"Healing","severity":"mild","confidence":82}`))
}

func TestRunSuccessRetainsMediaAndAppends(t *testing.T) {
	f := newFixture(t, okInference)

	rec, err := f.orch.Run(context.Background(), Request{
		Email:     "Jane@Example.com", // normalization exercised on purpose
		MediaKind: "image",
		Upload:    pngUpload("image bytes"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.Result != "Healing" || rec.Severity != "mild" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Confidence == nil || *rec.Confidence != 82 {
		t.Errorf("Expected confidence 82, got %v", rec.Confidence)
	}
	if rec.MediaKind != patient.MediaImage {
		t.Errorf("Expected image media kind, got %s", rec.MediaKind)
	}

	// The staged file becomes the durable media reference on success.
	if got := f.stagedFileCount(t); got != 1 {
		t.Errorf("Expected 1 retained staged file, got %d", got)
	}

	stored, err := f.store.FindByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if stored.TotalAnalyses() != 1 {
		t.Errorf("Expected 1 analysis in history, got %d", stored.TotalAnalyses())
	}
}

func TestRunRejectsInvalidUploadBeforeInference(t *testing.T) {
	f := newFixture(t, okInference)

	_, err := f.orch.Run(context.Background(), Request{
		Email:     "jane@example.com",
		MediaKind: "image",
		Upload: staging.Upload{
			Reader:      strings.NewReader("MZ..."),
			Filename:    "payload.exe",
			ContentType: "application/octet-stream",
			Size:        5,
		},
	})

	assertFailureKind(t, err, FailInvalidUpload)
	if f.called.Load() {
		t.Error("Inference must not be called for a rejected upload")
	}
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Expected no staged files, got %d", got)
	}
}

func TestRunStagingBackendFailureIsServerFault(t *testing.T) {
	f := newFixture(t, okInference)
	f.orch.Stager = &brokenStager{
		inner:    f.orch.Stager,
		stageErr: fmt.Errorf("write staged file: disk full"),
	}

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})

	// A backend that cannot take the bytes is not a client mistake.
	assertFailureKind(t, err, FailStagingError)
	if f.called.Load() {
		t.Error("Inference must not be called when staging fails")
	}
}

func TestRunUnreadableStagedFileIsServerFault(t *testing.T) {
	f := newFixture(t, okInference)
	f.orch.Stager = &brokenStager{
		inner:   f.orch.Stager,
		openErr: fmt.Errorf("read staged file: input/output error"),
	}

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailStagingError)
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Staged file must be released when it cannot be read back, found %d", got)
	}
}

func TestRunMissingIdentityReleasesFile(t *testing.T) {
	f := newFixture(t, okInference)

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "   ",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailMissingIdentity)
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Staged file must not outlive the request, found %d", got)
	}
}

func TestRunUnknownIdentityReleasesFile(t *testing.T) {
	f := newFixture(t, okInference)

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "nobody@example.com",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailUnknownIdentity)
	if f.called.Load() {
		t.Error("Inference must not be called for an unknown identity")
	}
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Staged file must not outlive the request, found %d", got)
	}
}

func TestRunInferenceUnavailableReleasesFile(t *testing.T) {
	f := newFixture(t, okInference)
	f.inference.Close() // connection refused from here on

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailInferenceUnavailable)
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Staged file must not survive a failed inference, found %d", got)
	}

	stored, _ := f.store.FindByEmail(context.Background(), "jane@example.com")
	if stored.TotalAnalyses() != 0 {
		t.Error("No analysis may be appended on inference failure")
	}
}

func TestRunInferenceBadResponseReleasesFile(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not json"))
	})

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailInferenceBadResponse)
	if got := f.stagedFileCount(t); got != 0 {
		t.Errorf("Staged file must not survive a bad inference response, found %d", got)
	}
}

func TestRunPersistenceFailureRetainsFile(t *testing.T) {
	f := newFixture(t, okInference)
	f.orch.Store = &failingStore{Store: f.store}

	_, err := f.orch.Run(context.Background(), Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})

	assertFailureKind(t, err, FailPersistence)
	// Inference already ran: keep the media rather than strand the work.
	if got := f.stagedFileCount(t); got != 1 {
		t.Errorf("Expected the staged file to be retained, found %d", got)
	}
}

func TestRunSurvivesClientDisconnect(t *testing.T) {
	f := newFixture(t, okInference)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller is already gone

	rec, err := f.orch.Run(ctx, Request{
		Email:  "jane@example.com",
		Upload: pngUpload("image bytes"),
	})
	if err != nil {
		t.Fatalf("Run should reach a terminal state despite cancellation: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a persisted record")
	}
}

func TestRunConcurrentAnalysesAllLand(t *testing.T) {
	f := newFixture(t, okInference)

	const k = 16
	var wg sync.WaitGroup
	errs := make(chan error, k)

	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Run(context.Background(), Request{
				Email:  "jane@example.com",
				Upload: pngUpload("image bytes"),
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Concurrent run failed: %v", err)
	}

	stored, err := f.store.FindByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if stored.TotalAnalyses() != k {
		t.Errorf("Expected %d analyses in history, got %d", k, stored.TotalAnalyses())
	}
	if got := f.stagedFileCount(t); got != k {
		t.Errorf("Expected %d retained media files, got %d", k, got)
	}
}

func TestResolveMediaKind(t *testing.T) {
	tests := []struct {
		name        string
		hint        string
		contentType string
		expected    patient.MediaKind
	}{
		{"Image hint", "image", "application/octet-stream", patient.MediaImage},
		{"Video hint", "video", "image/png", patient.MediaVideo},
		{"Hint case folded", " Video ", "", patient.MediaVideo},
		{"Fallback to video content type", "", "video/mp4", patient.MediaVideo},
		{"Fallback default is image", "", "", patient.MediaImage},
		{"Garbage hint falls through", "document", "video/webm", patient.MediaVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveMediaKind(tt.hint, tt.contentType); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func assertFailureKind(t *testing.T, err error, kind FailureKind) {
	t.Helper()
	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("Expected *PipelineError, got %v", err)
	}
	if pipeErr.Kind != kind {
		t.Fatalf("Expected failure kind %s, got %s", kind, pipeErr.Kind)
	}
}
