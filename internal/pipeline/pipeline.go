package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tubecast/tubecast/internal/cache"
	"github.com/tubecast/tubecast/internal/logging"
	"github.com/tubecast/tubecast/internal/transcode"
	"github.com/tubecast/tubecast/internal/youtube"
)

// State names one phase of a pipeline run.
type State string

const (
	StateCheckingCache    State = "checking_cache"
	StateAcquiring        State = "acquiring"
	StateFetchingMetadata State = "fetching_metadata"
	StateEncoding         State = "encoding"
	StatePromoting        State = "promoting"
	StateServing          State = "serving"
	StateFailed           State = "failed"
)

// Store is the artifact-store subset the pipeline needs.
type Store interface {
	Exists(ctx context.Context, itemID string) bool
	EntryPath(itemID string) (string, error)
	Promote(ctx context.Context, stagingPath, itemID string) (*cache.Entry, error)
}

// CollectionFetcher resolves playlist metadata used only to enrich tags.
type CollectionFetcher interface {
	FetchPlaylist(ctx context.Context, listID string, limit int) (*youtube.Playlist, error)
}

// Acquirer streams the audio-only representation of a video into a staging file.
type Acquirer interface {
	AcquireAudio(ctx context.Context, videoID, destPath string, onProgress func(float64)) (*youtube.AcquiredInfo, error)
}

// Encoder converts staged raw audio into the configured output profile.
type Encoder interface {
	Encode(ctx context.Context, src, dst string, tags transcode.Tags, profile transcode.Profile, onProgress func(float64)) error
}

// CollectionInfo is the (possibly empty) collection context applied to tags.
// Lookup failure degrades to the zero value; it never fails a run.
type CollectionInfo struct {
	Title  string
	Author string
}

// Request identifies one item to produce.
type Request struct {
	ItemID string
	ListID string
}

// Result reports where the finished artifact lives and how the run ended.
type Result struct {
	Path     string
	CacheHit bool
	State    State
}

// Options wires an Orchestrator.
type Options struct {
	Store        Store
	Metadata     CollectionFetcher
	Acquirer     Acquirer
	Encoder      Encoder
	Logger       *logrus.Logger
	Profile      transcode.Profile
	StagingDir   string
	EpisodeLimit int
}

// Orchestrator runs the cache-or-generate pipeline for item requests. Safe
// for concurrent use; each run owns its own staging files and state.
type Orchestrator struct {
	store        Store
	metadata     CollectionFetcher
	acquirer     Acquirer
	encoder      Encoder
	logger       *logrus.Logger
	profile      transcode.Profile
	stagingDir   string
	episodeLimit int
}

// New validates the wiring and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Metadata == nil {
		return nil, errors.New("metadata fetcher is required")
	}
	if opts.Acquirer == nil {
		return nil, errors.New("acquirer is required")
	}
	if opts.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Profile.Key == "" {
		return nil, errors.New("output profile is required")
	}
	stagingDir := opts.StagingDir
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	limit := opts.EpisodeLimit
	if limit <= 0 {
		limit = 20
	}
	return &Orchestrator{
		store:        opts.Store,
		metadata:     opts.Metadata,
		acquirer:     opts.Acquirer,
		encoder:      opts.Encoder,
		logger:       opts.Logger,
		profile:      opts.Profile,
		stagingDir:   stagingDir,
		episodeLimit: limit,
	}, nil
}

// Run executes the state machine for one request. A cache hit short-circuits
// to serving; a miss acquires, tags, encodes and promotes. The returned error
// is the failing component's typed error, suitable for surfacing verbatim.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ItemID == "" {
		return nil, errors.New("item id required")
	}

	run := &runState{orchestrator: o, req: req, state: StateCheckingCache}
	defer run.cleanup()

	result, err := run.execute(ctx)
	if err != nil {
		run.state = StateFailed
		o.logger.WithFields(logging.PipelineFields(req.ItemID, string(StateFailed))).
			WithError(err).Warn("pipeline_failed")
		return nil, err
	}
	return result, nil
}

// runState carries the mutable pieces of one pipeline run, most importantly
// the staging files pending cleanup.
type runState struct {
	orchestrator *Orchestrator
	req          Request
	state        State
	staging      []string
}

func (r *runState) execute(ctx context.Context) (*Result, error) {
	o := r.orchestrator
	itemID := r.req.ItemID

	cachedPath, err := o.store.EntryPath(itemID)
	if err != nil {
		return nil, err
	}
	if o.store.Exists(ctx, itemID) {
		r.state = StateServing
		o.logger.WithFields(logging.RequestFields(itemID, r.req.ListID, true)).Info("serving_cached")
		return &Result{Path: cachedPath, CacheHit: true, State: StateServing}, nil
	}

	r.transition(StateAcquiring)
	rawPath, err := r.allocStaging("tubecast-*.audio")
	if err != nil {
		return nil, err
	}
	info, err := o.acquirer.AcquireAudio(ctx, itemID, rawPath, o.progressLogger(itemID, "download"))
	if err != nil {
		return nil, err
	}

	r.transition(StateFetchingMetadata)
	collection := r.fetchCollection(ctx)

	r.transition(StateEncoding)
	encodedPath, err := r.allocStaging("tubecast-*" + o.profile.Extension)
	if err != nil {
		return nil, err
	}
	tags := buildTags(info, collection)
	if err := o.encoder.Encode(ctx, rawPath, encodedPath, tags, o.profile, o.progressLogger(itemID, "transcode")); err != nil {
		return nil, err
	}

	r.transition(StatePromoting)
	entry, err := o.store.Promote(ctx, encodedPath, itemID)
	if err != nil {
		return nil, err
	}

	r.state = StateServing
	o.logger.WithFields(logging.RequestFields(itemID, r.req.ListID, false)).Info("serving_generated")
	return &Result{Path: entry.FilePath, CacheHit: false, State: StateServing}, nil
}

// fetchCollection resolves the collection context, degrading to empty values
// on a missing list id or a failed lookup. Collection metadata is cosmetic —
// it only feeds album/album_artist tags — so it must never abort the run.
func (r *runState) fetchCollection(ctx context.Context) CollectionInfo {
	o := r.orchestrator
	if r.req.ListID == "" {
		return CollectionInfo{}
	}
	playlist, err := o.metadata.FetchPlaylist(ctx, r.req.ListID, o.episodeLimit)
	if err != nil {
		o.logger.WithFields(logging.RequestFields(r.req.ItemID, r.req.ListID, false)).
			WithError(err).Warn("collection_lookup_degraded")
		return CollectionInfo{}
	}
	return CollectionInfo{Title: playlist.Title, Author: playlist.Author}
}

func (r *runState) transition(next State) {
	r.state = next
	r.orchestrator.logger.
		WithFields(logging.PipelineFields(r.req.ItemID, string(next))).
		Debug("pipeline_state")
}

// allocStaging creates a uniquely named staging file owned by this run and
// registers it for unconditional cleanup.
func (r *runState) allocStaging(pattern string) (string, error) {
	f, err := os.CreateTemp(r.orchestrator.stagingDir, pattern)
	if err != nil {
		return "", fmt.Errorf("allocate staging file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("allocate staging file: %w", err)
	}
	r.staging = append(r.staging, name)
	return name, nil
}

// cleanup removes every staging file of this run that was not consumed by a
// successful promotion. Removal failures are logged, never propagated.
func (r *runState) cleanup() {
	for _, path := range r.staging {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.orchestrator.logger.
				WithFields(logging.PipelineFields(r.req.ItemID, string(r.state))).
				WithError(err).Warn("staging_cleanup_failed")
		}
	}
}

// buildTags prefers acquisition-time info over separate metadata lookups:
// it is contemporaneous with the downloaded bytes being tagged.
func buildTags(info *youtube.AcquiredInfo, collection CollectionInfo) transcode.Tags {
	year := ""
	if !info.PublishDate.IsZero() {
		year = strconv.Itoa(info.PublishDate.Year())
	}
	return transcode.Tags{
		Title:       info.Title,
		Artist:      info.Author,
		Album:       collection.Title,
		AlbumArtist: collection.Author,
		Date:        year,
		AuthorURL:   info.SourceURL,
	}
}

// progressLogger logs coarse progress at roughly every tenth step.
func (o *Orchestrator) progressLogger(itemID, phase string) func(float64) {
	lastDecile := -1
	return func(fraction float64) {
		if fraction < 0 {
			return
		}
		decile := int(fraction * 10)
		if decile <= lastDecile {
			return
		}
		lastDecile = decile
		o.logger.WithFields(logrus.Fields{
			"item_id": itemID,
			"phase":   phase,
			"percent": int(fraction * 100),
		}).Info("pipeline_progress")
	}
}
