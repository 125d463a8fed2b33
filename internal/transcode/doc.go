// Package transcode converts an acquired raw audio file into a fixed output
// profile with embedded tags by driving ffmpeg as a subprocess. Output
// profiles live in a small registry keyed by name; the built-in mp3-320
// profile (libmp3lame, 320 kbps CBR, 2 channels, 44.1 kHz) is the default.
// Encode progress is derived from ffmpeg -progress output against the
// ffprobe'd source duration and is reported for operational visibility only.
package transcode
