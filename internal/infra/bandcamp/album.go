package bandcamp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/osa030/camper/internal/domain/catalog"
)

// Album pages embed the full release data as a JSON blob in the
// data-tralbum attribute of a script tag.
type tralbumData struct {
	Current *struct {
		Title       string `json:"title"`
		Artist      string `json:"artist"`
		ReleaseDate string `json:"release_date"`
	} `json:"current"`
	TrackInfo []json.RawMessage `json:"trackinfo"`
	ArtID     *int64            `json:"art_id"`
	Artist    string            `json:"artist"`
}

type tralbumTrack struct {
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
	TrackNum *int     `json:"track_num"`
	File     *struct {
		MP3 string `json:"mp3-128"`
	} `json:"file"`
}

// ResolveAlbum fetches an album page and builds the full Album entity with
// its ordered track list. Malformed individual tracks are skipped.
func (c *Client) ResolveAlbum(ctx context.Context, albumURL string) (*catalog.Album, error) {
	data, err := c.fetchTralbum(ctx, albumURL)
	if err != nil {
		return nil, err
	}
	if data.Current == nil {
		return nil, errors.Mark(errors.New("album page has no release data"), ErrParse)
	}

	artist := data.Current.Artist
	if artist == "" {
		artist = data.Artist
	}

	album := &catalog.Album{
		URL:    albumURL,
		Title:  data.Current.Title,
		Artist: artist,
	}
	if data.ArtID != nil {
		album.ArtURL = catalog.ArtURLLarge(*data.ArtID)
	}
	if data.Current.ReleaseDate != "" {
		if t, err := time.Parse(addedDateLayout, data.Current.ReleaseDate); err == nil {
			album.ReleaseDate = &t
		}
	}

	album.Tracks = make([]catalog.Track, 0, len(data.TrackInfo))
	for i, raw := range data.TrackInfo {
		var t tralbumTrack
		if err := json.Unmarshal(raw, &t); err != nil {
			zlog.Warn().Err(err).Int("record", i).Str("album", albumURL).Msg("bandcamp: skipping malformed track")
			continue
		}

		track := catalog.Track{
			Title:    t.Title,
			Artist:   artist,
			Album:    album.Title,
			AlbumURL: albumURL,
			ArtURL:   album.ArtURL,
			TrackNum: i + 1,
		}
		if t.TrackNum != nil {
			track.TrackNum = *t.TrackNum
		}
		if t.Duration != nil {
			d := time.Duration(*t.Duration * float64(time.Second))
			track.Duration = &d
		}
		if t.File != nil {
			track.StreamURL = t.File.MP3
		}
		album.Tracks = append(album.Tracks, track)
	}

	return album, nil
}

// ResolveStreamURL re-fetches the album page and returns the stream URL of
// the given track. Stream URLs expire, so this runs on every (re)start of a
// track and the result is never cached.
func (c *Client) ResolveStreamURL(ctx context.Context, albumURL string, trackNum int) (string, error) {
	album, err := c.ResolveAlbum(ctx, albumURL)
	if err != nil {
		return "", err
	}
	for _, t := range album.Tracks {
		if t.TrackNum == trackNum {
			if t.StreamURL == "" {
				return "", errors.Mark(errors.Newf("track %d has no stream", trackNum), ErrNotFound)
			}
			return t.StreamURL, nil
		}
	}
	return "", errors.Mark(errors.Newf("track %d not found in album", trackNum), ErrNotFound)
}

func (c *Client) fetchTralbum(ctx context.Context, albumURL string) (*tralbumData, error) {
	body, err := c.get(ctx, albumURL, true)
	if err != nil {
		return nil, err
	}

	blob, ok := findTralbumAttr(body)
	if !ok {
		return nil, errors.Mark(errors.New("no tralbum data found in album page"), ErrParse)
	}

	var data tralbumData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse tralbum data"), ErrParse)
	}
	return &data, nil
}

// findTralbumAttr scans the page for the data-tralbum attribute.
func findTralbumAttr(page []byte) (string, bool) {
	tokenizer := html.NewTokenizer(strings.NewReader(string(page)))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "script" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "data-tralbum" {
					return attr.Val, true
				}
			}
		}
	}
}
