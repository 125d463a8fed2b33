package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/tubecast/tubecast/internal/cache"
	"github.com/tubecast/tubecast/internal/pipeline"
	"github.com/tubecast/tubecast/internal/server"
	"github.com/tubecast/tubecast/internal/server/routes"
	"github.com/tubecast/tubecast/internal/transcode"
	"github.com/tubecast/tubecast/internal/youtube"
)

// stack is a fully wired application backed by stub external tools.
type stack struct {
	app      *fiber.App
	tools    *stubTools
	cacheDir string
	staging  string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	tools := writeStubTools(t)
	cacheDir := t.TempDir()
	stagingDir := t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(cacheDir)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	client := youtube.NewClient(tools.ytdlp, time.Minute)
	encoder := transcode.NewEncoder(tools.ffmpeg, tools.ffprobe)
	profile, ok := transcode.Resolve(transcode.DefaultProfileKey())
	if !ok {
		t.Fatalf("default profile must resolve")
	}

	orchestrator, err := pipeline.New(pipeline.Options{
		Store:        store,
		Metadata:     client,
		Acquirer:     client,
		Encoder:      encoder,
		Logger:       logger,
		Profile:      profile,
		StagingDir:   stagingDir,
		EpisodeLimit: 20,
	})
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger, ListenPort: 3000})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.Register(app, routes.Options{
		Logger:       logger,
		Producer:     orchestrator,
		Metadata:     client,
		EpisodeLimit: 20,
		CacheDir:     cacheDir,
		ProfileKey:   profile.Key,
	})

	return &stack{app: app, tools: tools, cacheDir: cacheDir, staging: stagingDir}
}

func (s *stack) get(t *testing.T, target string) *http.Response {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest("GET", target, nil), fiber.TestConfig{
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

func TestItemMissThenHit(t *testing.T) {
	s := newStack(t)

	// Miss: acquire, tag, encode, promote.
	resp := s.get(t, "/item/abc123def45.mp3?list=PL1")
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d (body=%s)", resp.StatusCode, string(body))
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "raw-audio-bytes" {
		t.Fatalf("served payload mismatch: %s", string(body))
	}

	artifact := filepath.Join(s.cacheDir, "abc123def45.mp3")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact missing after miss: %v", err)
	}

	// meta + download for acquisition, playlist for collection tags.
	callsAfterMiss := len(s.tools.calls(t))
	if callsAfterMiss != 3 {
		t.Fatalf("expected 3 yt-dlp invocations on a miss, got %d (%v)", callsAfterMiss, s.tools.calls(t))
	}

	// Hit: same bytes, no further subprocesses.
	resp2 := s.get(t, "/item/abc123def45.mp3?list=PL1")
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 on cache hit, got %d", resp2.StatusCode)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if string(body2) != "raw-audio-bytes" {
		t.Fatalf("cached payload mismatch: %s", string(body2))
	}
	if got := len(s.tools.calls(t)); got != callsAfterMiss {
		t.Fatalf("cache hit must not spawn subprocesses: %d -> %d", callsAfterMiss, got)
	}

	entries, err := os.ReadDir(s.staging)
	if err != nil {
		t.Fatalf("read staging dir error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging files left behind: %v", entries)
	}
}

func TestItemWithoutListParameter(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "/item/abc123def45.mp3")
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d (body=%s)", resp.StatusCode, string(body))
	}
	resp.Body.Close()

	for _, mode := range s.tools.calls(t) {
		if mode == "playlist" {
			t.Fatalf("no collection lookup expected without a list parameter")
		}
	}
}

func TestItemAcquisitionFailure(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "/item/zzz999.mp3")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("error content type mismatch: %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "video unavailable") {
		t.Fatalf("error body should carry the tool message: %s", string(body))
	}

	if _, err := os.Stat(filepath.Join(s.cacheDir, "zzz999.mp3")); !os.IsNotExist(err) {
		t.Fatalf("failed run must not leave an artifact, stat err=%v", err)
	}

	entries, err := os.ReadDir(s.staging)
	if err != nil {
		t.Fatalf("read staging dir error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging files left behind after failure: %v", entries)
	}
}
