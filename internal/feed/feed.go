// Package feed renders a podcast-compatible RSS 2.0 document with iTunes
// extensions from playlist and episode metadata.
package feed

import (
	"encoding/xml"
	"errors"
	"time"
)

const generatorName = "tubecast"

// Channel carries the feed-level metadata derived from a playlist.
type Channel struct {
	Title       string
	Description string
	FeedURL     string
	SiteURL     string
	ImageURL    string
	Author      string
	PubDate     time.Time
}

// Episode carries one feed item. EnclosureURL points back at this service's
// own /item endpoint so audio is produced lazily on first fetch.
type Episode struct {
	Title           string
	Description     string
	Link            string
	GUID            string
	Category        string
	Author          string
	PubDate         time.Time
	EnclosureURL    string
	DurationSeconds int
	ImageURL        string
	NewFeedURL      string
}

type rssDoc struct {
	XMLName     xml.Name   `xml:"rss"`
	Version     string     `xml:"version,attr"`
	ItunesXMLNS string     `xml:"xmlns:itunes,attr"`
	Channel     rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Description   string      `xml:"description"`
	Link          string      `xml:"link"`
	Generator     string      `xml:"generator"`
	PubDate       string      `xml:"pubDate,omitempty"`
	ItunesAuthor  string      `xml:"itunes:author,omitempty"`
	ItunesSummary string      `xml:"itunes:summary,omitempty"`
	ItunesImage   *itunesHref `xml:"itunes:image,omitempty"`
	Image         *rssImage   `xml:"image,omitempty"`
	Items         []rssItem   `xml:"item"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type itunesHref struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	Title            string        `xml:"title"`
	Description      string        `xml:"description,omitempty"`
	Link             string        `xml:"link,omitempty"`
	GUID             rssGUID       `xml:"guid"`
	Category         string        `xml:"category,omitempty"`
	Author           string        `xml:"itunes:author,omitempty"`
	PubDate          string        `xml:"pubDate,omitempty"`
	Enclosure        *rssEnclosure `xml:"enclosure,omitempty"`
	ItunesTitle      string        `xml:"itunes:title,omitempty"`
	ItunesSummary    string        `xml:"itunes:summary,omitempty"`
	ItunesDuration   int           `xml:"itunes:duration,omitempty"`
	ItunesImage      *itunesHref   `xml:"itunes:image,omitempty"`
	ItunesNewFeedURL string        `xml:"itunes:new-feed-url,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// Render produces the indented XML document, prefixed with the standard XML
// header, ready to serve as text/xml.
func Render(channel Channel, episodes []Episode) ([]byte, error) {
	if channel.Title == "" {
		return nil, errors.New("feed channel title required")
	}

	doc := rssDoc{
		Version:     "2.0",
		ItunesXMLNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: rssChannel{
			Title:         channel.Title,
			Description:   channel.Description,
			Link:          channel.SiteURL,
			Generator:     generatorName,
			PubDate:       formatPubDate(channel.PubDate),
			ItunesAuthor:  channel.Author,
			ItunesSummary: channel.Description,
		},
	}
	if channel.ImageURL != "" {
		doc.Channel.ItunesImage = &itunesHref{Href: channel.ImageURL}
		doc.Channel.Image = &rssImage{
			URL:   channel.ImageURL,
			Title: channel.Title,
			Link:  channel.SiteURL,
		}
	}

	doc.Channel.Items = make([]rssItem, 0, len(episodes))
	for _, episode := range episodes {
		item := rssItem{
			Title:            episode.Title,
			Description:      episode.Description,
			Link:             episode.Link,
			GUID:             rssGUID{IsPermaLink: false, Value: episode.GUID},
			Category:         episode.Category,
			Author:           episode.Author,
			PubDate:          formatPubDate(episode.PubDate),
			ItunesTitle:      episode.Title,
			ItunesSummary:    episode.Description,
			ItunesDuration:   episode.DurationSeconds,
			ItunesNewFeedURL: episode.NewFeedURL,
		}
		if episode.EnclosureURL != "" {
			item.Enclosure = &rssEnclosure{URL: episode.EnclosureURL, Type: "audio/mpeg"}
		}
		if episode.ImageURL != "" {
			item.ItunesImage = &itunesHref{Href: episode.ImageURL}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func formatPubDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC1123Z)
}
