package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtURL(t *testing.T) {
	assert.Equal(t, "https://f4.bcbits.com/img/a0000000777_10.jpg", ArtURLThumb(777))
	assert.Equal(t, "https://f4.bcbits.com/img/a0000000777_5.jpg", ArtURLLarge(777))
	assert.Equal(t, "https://f4.bcbits.com/img/a1234567890_10.jpg", ArtURLThumb(1234567890))
}

func TestBrowserURL(t *testing.T) {
	origin := Origin{View: "search", AlbumURL: "https://band.bandcamp.com/album/x"}
	assert.Equal(t, "https://band.bandcamp.com/album/x", BrowserURL(origin))
}

func TestDefaultDiscoverParams(t *testing.T) {
	params := DefaultDiscoverParams()
	assert.True(t, ValidGenre(params.Genre))
	assert.True(t, ValidSort(params.Sort))
	assert.True(t, ValidFormat(params.Format))
	assert.Zero(t, params.Page)
}

func TestOptionValidation(t *testing.T) {
	assert.True(t, ValidGenre("electronic"))
	assert.False(t, ValidGenre("polka-fusion"))
	assert.True(t, ValidSort("top"))
	assert.False(t, ValidSort("oldest"))
	assert.True(t, ValidFormat("cassette"))
	assert.False(t, ValidFormat("minidisc"))
}
