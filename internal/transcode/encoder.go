package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tags is the metadata set embedded into the encoded container. Empty values
// are written as empty strings, never as placeholder text.
type Tags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Date        string
	AuthorURL   string
}

// TranscodeError reports an encoder failure for one source file.
type TranscodeError struct {
	Src string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Src, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Encoder drives ffmpeg/ffprobe subprocesses.
type Encoder struct {
	FfmpegPath  string
	FfprobePath string
}

// NewEncoder creates an encoder; empty paths fall back to the binaries on PATH.
func NewEncoder(ffmpegPath, ffprobePath string) *Encoder {
	return &Encoder{FfmpegPath: ffmpegPath, FfprobePath: ffprobePath}
}

// Encode converts src into dst using the given profile and embeds tags.
// onProgress (optional) receives a 0..1 fraction; progress requires a probed
// source duration and degrades silently to no callbacks without one. The
// input container format is unconstrained.
func (e *Encoder) Encode(ctx context.Context, src, dst string, tags Tags, profile Profile, onProgress func(float64)) error {
	args := buildEncodeArgs(src, dst, tags, profile)

	var sourceDuration float64
	if onProgress != nil {
		if probed, err := probeDuration(ctx, e.ffprobePath(), src); err == nil {
			sourceDuration = probed
		}
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &TranscodeError{Src: src, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &TranscodeError{Src: src, Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onProgress == nil || sourceDuration <= 0 {
			continue
		}
		if fraction, ok := parseEncodeProgress(scanner.Text(), sourceDuration); ok {
			onProgress(fraction)
		}
	}

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return &TranscodeError{Src: src, Err: fmt.Errorf("ffmpeg failed: %w: %s", err, msg)}
		}
		return &TranscodeError{Src: src, Err: fmt.Errorf("ffmpeg failed: %w", err)}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// buildEncodeArgs assembles the full ffmpeg argument list for one encode run.
// -progress pipe:1 emits machine-readable key=value lines on stdout.
func buildEncodeArgs(src, dst string, tags Tags, profile Profile) []string {
	return []string{
		"-nostdin", "-y",
		"-i", src,
		"-vn",
		"-codec:a", profile.Codec,
		"-b:a", fmt.Sprintf("%dk", profile.BitrateKbps),
		"-ac", strconv.Itoa(profile.Channels),
		"-ar", strconv.Itoa(profile.SampleRate),
		"-metadata", "title=" + tags.Title,
		"-metadata", "artist=" + tags.Artist,
		"-metadata", "album_artist=" + tags.AlbumArtist,
		"-metadata", "album=" + tags.Album,
		"-metadata", "date=" + tags.Date,
		"-metadata", "author_url=" + tags.AuthorURL,
		"-f", profile.Format,
		"-progress", "pipe:1",
		"-nostats",
		dst,
	}
}

// parseEncodeProgress turns an ffmpeg progress line (out_time_ms=N, in
// microseconds despite the name) into a completion fraction.
func parseEncodeProgress(line string, sourceDuration float64) (float64, bool) {
	value, ok := strings.CutPrefix(strings.TrimSpace(line), "out_time_ms=")
	if !ok {
		return 0, false
	}
	micros, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	fraction := (micros / 1e6) / sourceDuration
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}

func (e *Encoder) ffmpegPath() string {
	if e.FfmpegPath != "" {
		return e.FfmpegPath
	}
	return "ffmpeg"
}

func (e *Encoder) ffprobePath() string {
	if e.FfprobePath != "" {
		return e.FfprobePath
	}
	return "ffprobe"
}
