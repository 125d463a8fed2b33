package youtube

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var downloadProgressPattern = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)

// AcquireAudio streams the best available audio-only representation of the
// video into destPath. It first captures contemporaneous metadata, then runs
// the download; onProgress (optional) receives a 0..1 fraction parsed from
// yt-dlp progress lines and exists for operational visibility only.
//
// On failure the partial destination file is left in place; removing it is the
// caller's cleanup responsibility.
func (c *Client) AcquireAudio(ctx context.Context, videoID, destPath string, onProgress func(float64)) (*AcquiredInfo, error) {
	video, err := c.FetchVideo(ctx, videoID)
	if err != nil {
		return nil, &AcquisitionError{ID: videoID, Err: err}
	}

	info := &AcquiredInfo{
		ID:          video.ID,
		Title:       video.Title,
		Author:      video.Author,
		SourceURL:   video.SourceURL,
		Duration:    video.Duration,
		PublishDate: video.PublishDate,
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.path(),
		"-f", "bestaudio",
		"--no-playlist", "--no-warnings", "--newline",
		"-o", destPath,
		"--", watchURL(videoID))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &AcquisitionError{ID: videoID, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &AcquisitionError{ID: videoID, Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onProgress == nil {
			continue
		}
		if fraction, ok := parseDownloadProgress(scanner.Text()); ok {
			onProgress(fraction)
		}
	}

	if err := cmd.Wait(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, &AcquisitionError{ID: videoID, Err: fmt.Errorf("download timed out after %s", c.timeout())}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, &AcquisitionError{ID: videoID, Err: fmt.Errorf("yt-dlp failed: %w: %s", err, msg)}
		}
		return nil, &AcquisitionError{ID: videoID, Err: fmt.Errorf("yt-dlp failed: %w", err)}
	}

	return info, nil
}

// parseDownloadProgress extracts the percentage from a yt-dlp progress line
// such as "[download]  42.3% of 10.00MiB at 1.00MiB/s".
func parseDownloadProgress(line string) (float64, bool) {
	match := downloadProgressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return percent / 100, true
}
