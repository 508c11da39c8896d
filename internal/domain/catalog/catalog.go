// Package catalog provides the domain entities for the Bandcamp catalog.
package catalog

import (
	"fmt"
	"time"
)

// EntityKind distinguishes albums from standalone tracks in list projections.
type EntityKind string

const (
	KindAlbum EntityKind = "album"
	KindTrack EntityKind = "track"
)

// Artist represents a Bandcamp artist/band.
// Albums and tracks reference artists by name and page URL rather than
// embedding them, so paged results do not duplicate artist data.
type Artist struct {
	Name string // Display name
	URL  string // Artist page URL
}

// Track represents a single playable track.
// Immutable once built from upstream data. StreamURL is transient: it is
// only valid for the playback attempt it was resolved for.
type Track struct {
	Title     string         // Track title
	Artist    string         // Artist display name
	Album     string         // Album title
	AlbumURL  string         // Owning album page URL (stable identifier)
	ArtURL    string         // Album art URL
	StreamURL string         // Resolved stream URL (empty until resolved)
	Duration  *time.Duration // Track length (nil until known)
	TrackNum  int            // 1-based position within the album
}

// Album represents a Bandcamp release with its ordered track list.
// The page URL is the stable catalog identifier.
type Album struct {
	URL         string     // Album page URL (identifier)
	Title       string     // Album title
	Artist      string     // Artist display name
	ArtURL      string     // Album art URL
	Genre       string     // Primary genre (may be empty)
	Tags        []string   // Free-form tags (may be empty)
	Format      string     // Release format filter value (may be empty)
	ReleaseDate *time.Time // Release date (nil if unknown)
	Tracks      []Track    // Ordered track list
}

// AcquisitionKind distinguishes purchased from wishlisted library items.
type AcquisitionKind string

const (
	AcquisitionPurchased AcquisitionKind = "purchased"
	AcquisitionWishlist  AcquisitionKind = "wishlist"
)

// LibraryEntry wraps a collection item with its acquisition kind.
type LibraryEntry struct {
	Kind       AcquisitionKind
	Title      string
	Artist     string
	ArtURL     string
	URL        string     // Album/track page URL
	AcquiredAt *time.Time // When the item entered the collection (nil if unknown)
}

// SearchResult is a thin projection of a search hit. It is resolved to a
// full Album only on selection.
type SearchResult struct {
	Kind   EntityKind
	Title  string
	Artist string
	ArtURL string
	URL    string
}

// DiscoveryItem is a thin projection of a discovery feed entry.
type DiscoveryItem struct {
	Title  string
	Artist string
	ArtURL string
	URL    string
	Genre  string
}

// Origin records which browsing context a queued track came from. It is
// used only for display and "open in browser", never for playback logic.
type Origin struct {
	View     string // "search", "discover", "library", "album"
	AlbumURL string // Page URL of the originating album/track
}

// BrowserURL maps an origin back to the page a browser should open.
func BrowserURL(o Origin) string {
	return o.AlbumURL
}

// Art URL format IDs used by the Bandcamp image CDN.
const (
	artFormatThumb = 10 // 350px, grid thumbnails
	artFormatLarge = 5  // 700px, player/detail views
)

// ArtURL builds an image CDN URL from an art ID and format ID.
func ArtURL(artID int64, formatID int) string {
	return fmt.Sprintf("https://f4.bcbits.com/img/a%010d_%d.jpg", artID, formatID)
}

// ArtURLThumb returns the 350px thumbnail URL for an art ID.
func ArtURLThumb(artID int64) string {
	return ArtURL(artID, artFormatThumb)
}

// ArtURLLarge returns the 700px image URL for an art ID.
func ArtURLLarge(artID int64) string {
	return ArtURL(artID, artFormatLarge)
}
