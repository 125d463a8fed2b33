package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const stubVideoJSON = `{
	"id": "abc123def45",
	"title": "Test Episode",
	"description": "A longer description",
	"uploader": "Jane",
	"uploader_url": "https://www.youtube.com/@jane",
	"upload_date": "20240315",
	"duration": 60.0,
	"webpage_url": "https://www.youtube.com/watch?v=abc123def45",
	"thumbnail": "https://i.ytimg.com/vi/abc123def45/hq720.jpg",
	"categories": ["Music"]
}`

const stubPlaylistJSON = `{
	"id": "PL1",
	"title": "My Mix",
	"description": "Mix description",
	"uploader": "Jane",
	"webpage_url": "https://www.youtube.com/playlist?list=PL1",
	"entries": [
		{"id": "abc123def45", "title": "Test Episode", "url": "https://www.youtube.com/watch?v=abc123def45", "duration": 60.0}
	]
}`

// stubTools is the set of fake external binaries one test run works against,
// plus the invocation journal used to assert cache hits skip subprocesses.
type stubTools struct {
	ytdlp   string
	ffmpeg  string
	ffprobe string
	journal string
}

// calls returns the recorded yt-dlp invocation modes, one per line.
func (s *stubTools) calls(t *testing.T) []string {
	t.Helper()
	body, err := os.ReadFile(s.journal)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read journal error: %v", err)
	}
	return strings.Fields(string(body))
}

// writeStubTools drops shell scripts mimicking yt-dlp, ffmpeg and ffprobe.
// The yt-dlp stub fails for any invocation mentioning the id "zzz999" so
// tests can drive acquisition failures end to end.
func writeStubTools(t *testing.T) *stubTools {
	t.Helper()
	dir := t.TempDir()
	tools := &stubTools{
		ytdlp:   filepath.Join(dir, "yt-dlp"),
		ffmpeg:  filepath.Join(dir, "ffmpeg"),
		ffprobe: filepath.Join(dir, "ffprobe"),
		journal: filepath.Join(dir, "journal"),
	}

	ytdlpBody := `#!/bin/sh
mode=meta
out=""
prev=""
fail=0
for arg in "$@"; do
  case "$arg" in
    bestaudio) mode=download ;;
    --flat-playlist) mode=playlist ;;
    *zzz999*) fail=1 ;;
  esac
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  prev="$arg"
done
echo "$mode" >> "` + tools.journal + `"
if [ "$fail" = "1" ]; then
  echo "ERROR: video unavailable" >&2
  exit 1
fi
case "$mode" in
  playlist) cat <<'EOF'
` + stubPlaylistJSON + `
EOF
  ;;
  download)
    echo "[download]  50.0% of 1.00MiB at 1.00MiB/s"
    echo "[download] 100.0% of 1.00MiB at 1.00MiB/s"
    printf 'raw-audio-bytes' > "$out"
  ;;
  *) cat <<'EOF'
` + stubVideoJSON + `
EOF
  ;;
esac
`
	if err := os.WriteFile(tools.ytdlp, []byte(ytdlpBody), 0o755); err != nil {
		t.Fatalf("write yt-dlp stub error: %v", err)
	}

	probeBody := "#!/bin/sh\necho '{\"format\": {\"duration\": \"60.0\"}}'\n"
	if err := os.WriteFile(tools.ffprobe, []byte(probeBody), 0o755); err != nil {
		t.Fatalf("write ffprobe stub error: %v", err)
	}

	ffmpegBody := `#!/bin/sh
src=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then src="$arg"; fi
  prev="$arg"
done
for last in "$@"; do :; done
echo "out_time_ms=30000000"
echo "out_time_ms=60000000"
echo "progress=end"
cp "$src" "$last"
`
	if err := os.WriteFile(tools.ffmpeg, []byte(ffmpegBody), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub error: %v", err)
	}
	return tools
}
