// Package youtube wraps yt-dlp subprocess invocations behind two narrow
// operations: descriptive metadata lookup (per video and per playlist) and
// audio-only acquisition into a caller-owned staging file. The two may report
// slightly different metadata for the same video; acquisition info is
// contemporaneous with the downloaded bytes and is what tagging trusts.
package youtube
