// Package cache defines the disk-backed artifact store that maps an item id to
// a completed audio file under <CacheDir>/<id>.mp3. Presence is existence: no
// manifest or index file exists beside the artifacts. The store exposes
// read/promote primitives with safe semantics (atomic rename) so concurrent
// readers never observe a partially written artifact, and the pipeline depends
// on it to decide between serving cached bytes and generating fresh ones.
package cache
