package youtube

import "time"

// Video contains the descriptive metadata of a single video as reported by a
// dedicated metadata lookup.
type Video struct {
	ID          string
	Title       string
	Description string
	Author      string
	AuthorURL   string
	SourceURL   string
	Thumbnail   string
	Category    string
	Duration    int
	PublishDate time.Time
}

// PlaylistEntry is one flat entry of a playlist listing. Flat listings carry
// only what the playlist page itself exposes.
type PlaylistEntry struct {
	ID       string
	Title    string
	URL      string
	Duration int
}

// Playlist describes a playlist and its (limited) entry listing.
type Playlist struct {
	ID           string
	Title        string
	Description  string
	Author       string
	URL          string
	Thumbnail    string
	ModifiedDate time.Time
	Entries      []PlaylistEntry
}

// AcquiredInfo is the metadata captured during the acquisition run itself.
// It is independent of Video lookups and preferred for tagging because it was
// fetched in the same operation as the downloaded bytes.
type AcquiredInfo struct {
	ID          string
	Title       string
	Author      string
	SourceURL   string
	Duration    int
	PublishDate time.Time
}
