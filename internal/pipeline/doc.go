// Package pipeline sequences the cache store, metadata fetcher, media
// acquirer and transcoder into one request-scoped run. The flow is an
// explicit state machine — checking_cache, acquiring, fetching_metadata,
// encoding, promoting, serving, failed — so error and cleanup paths stay
// uniform instead of being duplicated per branch. Every staging file
// allocated during a run that is not consumed by a successful promotion is
// deleted before the run completes, success or failure.
package pipeline
