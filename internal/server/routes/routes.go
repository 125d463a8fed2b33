package routes

import (
	"context"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/tubecast/tubecast/internal/feed"
	"github.com/tubecast/tubecast/internal/pipeline"
	"github.com/tubecast/tubecast/internal/server"
	"github.com/tubecast/tubecast/internal/version"
	"github.com/tubecast/tubecast/internal/youtube"
)

const landingPage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>tubecast</title>
</head>
<body>
Hello, I am tubecast
</body>
</html>
`

// ItemProducer runs the cache-or-generate pipeline for one item request.
// Satisfied by *pipeline.Orchestrator; tests inject fakes.
type ItemProducer interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// MetadataFetcher resolves playlist and per-video metadata for feed assembly.
// Satisfied by *youtube.Client.
type MetadataFetcher interface {
	FetchPlaylist(ctx context.Context, listID string, limit int) (*youtube.Playlist, error)
	FetchVideo(ctx context.Context, videoID string) (*youtube.Video, error)
}

// Options wires the route handlers.
type Options struct {
	Logger        *logrus.Logger
	Producer      ItemProducer
	Metadata      MetadataFetcher
	EpisodeLimit  int
	PublicBaseURL string
	CacheDir      string
	ProfileKey    string
}

// Register attaches the landing page, feed, item and diagnostics routes.
func Register(app *fiber.App, opts Options) {
	if app == nil {
		return
	}

	app.Get("/", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(landingPage)
	})

	app.Get("/feed/:id.rss", handleFeed(opts))
	app.Get("/item/:id.mp3", handleItem(opts))

	app.Get("/-/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version":   version.Full(),
			"cache_dir": opts.CacheDir,
			"profile":   opts.ProfileKey,
		})
	})
}

// handleFeed assembles the podcast XML for one playlist: a flat playlist
// listing first, then one metadata lookup per entry (fetched concurrently,
// the way the feed was originally built). Any upstream failure fails the
// whole document.
func handleFeed(opts Options) fiber.Handler {
	return func(c fiber.Ctx) error {
		listID := c.Params("id")
		ctx := context.WithoutCancel(c.Context())
		base := server.HostBase(c, opts.PublicBaseURL)

		playlist, err := opts.Metadata.FetchPlaylist(ctx, listID, opts.EpisodeLimit)
		if err != nil {
			return writeError(c, opts.Logger, "feed_failed", listID, err)
		}

		feedURL := base + string(c.Request().URI().RequestURI())
		episodes, err := collectEpisodes(ctx, opts.Metadata, playlist, base, feedURL)
		if err != nil {
			return writeError(c, opts.Logger, "feed_failed", listID, err)
		}

		channel := feed.Channel{
			Title:       playlist.Title,
			Description: playlist.Description,
			FeedURL:     feedURL,
			SiteURL:     playlist.URL,
			ImageURL:    playlist.Thumbnail,
			Author:      playlist.Author,
			PubDate:     playlist.ModifiedDate,
		}
		body, err := feed.Render(channel, episodes)
		if err != nil {
			return writeError(c, opts.Logger, "feed_failed", listID, err)
		}

		c.Set(fiber.HeaderContentType, "text/xml; charset=utf-8")
		return c.Send(body)
	}
}

// collectEpisodes resolves per-entry metadata concurrently while preserving
// playlist order. The first lookup failure wins and fails the feed.
func collectEpisodes(ctx context.Context, metadata MetadataFetcher, playlist *youtube.Playlist, base, feedURL string) ([]feed.Episode, error) {
	episodes := make([]feed.Episode, len(playlist.Entries))
	errs := make([]error, len(playlist.Entries))

	var wg sync.WaitGroup
	for i, entry := range playlist.Entries {
		wg.Add(1)
		go func(i int, entry youtube.PlaylistEntry) {
			defer wg.Done()
			video, err := metadata.FetchVideo(ctx, entry.ID)
			if err != nil {
				errs[i] = err
				return
			}
			episodes[i] = feed.Episode{
				Title:           video.Title,
				Description:     video.Description,
				Link:            entry.URL,
				GUID:            entry.ID,
				Category:        video.Category,
				Author:          video.Author,
				PubDate:         video.PublishDate,
				EnclosureURL:    enclosureURL(base, entry.ID, playlist.ID),
				DurationSeconds: video.Duration,
				ImageURL:        video.Thumbnail,
				NewFeedURL:      feedURL,
			}
		}(i, entry)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return episodes, nil
}

// handleItem runs the transcoding pipeline and serves the cached artifact.
func handleItem(opts Options) fiber.Handler {
	return func(c fiber.Ctx) error {
		itemID := c.Params("id")
		listID := string(c.Request().URI().QueryArgs().Peek("list"))

		// 请求被客户端中断时，进行中的下载/转码仍继续跑完，便于结果进入缓存。
		ctx := context.WithoutCancel(c.Context())

		result, err := opts.Producer.Run(ctx, pipeline.Request{ItemID: itemID, ListID: listID})
		if err != nil {
			return writeError(c, opts.Logger, "item_failed", itemID, err)
		}

		opts.Logger.WithFields(logrus.Fields{
			"action":     "serve_item",
			"item_id":    itemID,
			"list_id":    listID,
			"cache_hit":  result.CacheHit,
			"request_id": server.RequestID(c),
		}).Info("item served")

		return c.SendFile(result.Path)
	}
}

// writeError answers with 500 and the failing component's message as plain
// text, matching the contract that one failed request never affects others.
func writeError(c fiber.Ctx, logger *logrus.Logger, action, id string, err error) error {
	logger.WithFields(logrus.Fields{
		"action":     action,
		"id":         id,
		"request_id": server.RequestID(c),
	}).WithError(err).Warn(action)

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
}

func enclosureURL(base, videoID, playlistID string) string {
	u := base + "/item/" + videoID + ".mp3"
	if playlistID != "" {
		u += "?list=" + url.QueryEscape(playlistID)
	}
	return u
}
