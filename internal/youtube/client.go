package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultFetchTimeout = 10 * time.Minute

	watchURLTemplate    = "https://www.youtube.com/watch?v=%s"
	playlistURLTemplate = "https://www.youtube.com/playlist?list=%s"
)

// Client invokes yt-dlp as a subprocess for metadata lookups and audio
// acquisition.
type Client struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time one invocation may take. Defaults to 10 minutes.
	Timeout time.Duration
}

// NewClient creates a yt-dlp client with the given executable path and timeout.
// Zero values fall back to defaults.
func NewClient(path string, timeout time.Duration) *Client {
	return &Client{Path: path, Timeout: timeout}
}

// FetchVideo retrieves per-video metadata via `yt-dlp -J`.
func (c *Client) FetchVideo(ctx context.Context, videoID string) (*Video, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, &UpstreamError{Op: "fetch_video", ID: videoID, Err: errors.New("empty video id")}
	}

	output, err := c.runJSON(ctx, "-J", "--no-warnings", "--no-playlist", "--", watchURL(videoID))
	if err != nil {
		return nil, &UpstreamError{Op: "fetch_video", ID: videoID, Err: err}
	}

	video, err := parseVideoJSON(output)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch_video", ID: videoID, Err: err}
	}
	return video, nil
}

// FetchPlaylist retrieves the playlist description and up to limit entries via
// a flat listing (`yt-dlp --flat-playlist -J`).
func (c *Client) FetchPlaylist(ctx context.Context, listID string, limit int) (*Playlist, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, &UpstreamError{Op: "fetch_playlist", ID: listID, Err: errors.New("empty playlist id")}
	}
	if limit <= 0 {
		limit = 20
	}

	output, err := c.runJSON(ctx,
		"--flat-playlist", "-J", "--no-warnings",
		"--playlist-end", strconv.Itoa(limit),
		"--", playlistURL(listID))
	if err != nil {
		return nil, &UpstreamError{Op: "fetch_playlist", ID: listID, Err: err}
	}

	playlist, err := parsePlaylistJSON(output)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch_playlist", ID: listID, Err: err}
	}
	return playlist, nil
}

func (c *Client) runJSON(ctx context.Context, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("yt-dlp timed out after %s", c.timeout())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}
	return stdout.Bytes(), nil
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return defaultYtdlpPath
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultFetchTimeout
}

func watchURL(videoID string) string {
	if strings.Contains(videoID, "://") {
		return videoID
	}
	return fmt.Sprintf(watchURLTemplate, videoID)
}

func playlistURL(listID string) string {
	if strings.Contains(listID, "://") {
		return listID
	}
	return fmt.Sprintf(playlistURLTemplate, listID)
}

// ytdlpVideo mirrors the subset of yt-dlp's single-video JSON output we use.
type ytdlpVideo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Uploader    string   `json:"uploader"`
	UploaderURL string   `json:"uploader_url"`
	UploadDate  string   `json:"upload_date"`
	Duration    float64  `json:"duration"`
	WebpageURL  string   `json:"webpage_url"`
	Thumbnail   string   `json:"thumbnail"`
	Categories  []string `json:"categories"`
}

func parseVideoJSON(data []byte) (*Video, error) {
	var raw ytdlpVideo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse video JSON: %w", err)
	}
	if raw.ID == "" || raw.Title == "" {
		return nil, errors.New("invalid video metadata: missing id or title")
	}

	video := &Video{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		Author:      raw.Uploader,
		AuthorURL:   raw.UploaderURL,
		SourceURL:   raw.WebpageURL,
		Thumbnail:   raw.Thumbnail,
		Duration:    int(raw.Duration),
		PublishDate: parseUploadDate(raw.UploadDate),
	}
	if video.SourceURL == "" {
		video.SourceURL = watchURL(raw.ID)
	}
	if len(raw.Categories) > 0 {
		video.Category = raw.Categories[0]
	}
	return video, nil
}

// ytdlpPlaylist mirrors yt-dlp's flat-playlist JSON output.
type ytdlpPlaylist struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Uploader     string       `json:"uploader"`
	WebpageURL   string       `json:"webpage_url"`
	ModifiedDate string       `json:"modified_date"`
	Entries      []ytdlpEntry `json:"entries"`
	Thumbnails   []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type ytdlpEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

func parsePlaylistJSON(data []byte) (*Playlist, error) {
	var raw ytdlpPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse playlist JSON: %w", err)
	}
	if raw.ID == "" {
		return nil, errors.New("invalid playlist metadata: missing id")
	}

	playlist := &Playlist{
		ID:           raw.ID,
		Title:        raw.Title,
		Description:  raw.Description,
		Author:       raw.Uploader,
		URL:          raw.WebpageURL,
		ModifiedDate: parseUploadDate(raw.ModifiedDate),
	}
	if playlist.URL == "" {
		playlist.URL = playlistURL(raw.ID)
	}
	if len(raw.Thumbnails) > 0 {
		playlist.Thumbnail = raw.Thumbnails[len(raw.Thumbnails)-1].URL
	}

	playlist.Entries = make([]PlaylistEntry, 0, len(raw.Entries))
	for _, entry := range raw.Entries {
		if entry.ID == "" {
			continue
		}
		url := entry.URL
		if url == "" {
			url = watchURL(entry.ID)
		}
		playlist.Entries = append(playlist.Entries, PlaylistEntry{
			ID:       entry.ID,
			Title:    entry.Title,
			URL:      url,
			Duration: int(entry.Duration),
		})
	}
	return playlist, nil
}

// parseUploadDate converts yt-dlp's YYYYMMDD upload_date into a time value;
// unparseable input yields the zero time.
func parseUploadDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
