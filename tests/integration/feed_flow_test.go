package integration

import (
	"io"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestFeedRendersPlaylist(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "http://feeds.local/feed/PL1.rss")
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type mismatch: %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	xml := string(body)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		"<title>My Mix</title>",
		"<title>Test Episode</title>",
		"/item/abc123def45.mp3?list=PL1",
		`type="audio/mpeg"`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("feed missing %q:\n%s", want, xml)
		}
	}

	// One flat listing plus one metadata lookup per entry, no downloads.
	for _, mode := range s.tools.calls(t) {
		if mode == "download" {
			t.Fatalf("feed assembly must not download media")
		}
	}
}

func TestFeedFailsWhenListingFails(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "/feed/zzz999.rss")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "video unavailable") {
		t.Fatalf("error body should carry the tool message: %s", string(body))
	}
}
