package catalog

// Option is a discover filter value with its display label.
type Option struct {
	Value string
	Label string
}

// DiscoverParams are the opaque query inputs for the discovery feed.
type DiscoverParams struct {
	Genre  string `mapstructure:"genre"`
	Tag    string `mapstructure:"tag"`
	Sort   string `mapstructure:"sort"`
	Format string `mapstructure:"format"`
	Page   int    `mapstructure:"page"`
}

// DefaultDiscoverParams returns the feed defaults: all genres, newest first.
func DefaultDiscoverParams() DiscoverParams {
	return DiscoverParams{Genre: "all", Sort: "new", Format: "all", Page: 0}
}

// Genres lists the top-level discover genres.
var Genres = []Option{
	{"all", "All"},
	{"electronic", "Electronic"},
	{"rock", "Rock"},
	{"metal", "Metal"},
	{"alternative", "Alternative"},
	{"hip-hop-rap", "Hip-Hop/Rap"},
	{"experimental", "Experimental"},
	{"punk", "Punk"},
	{"folk", "Folk"},
	{"pop", "Pop"},
	{"ambient", "Ambient"},
	{"soundtrack", "Soundtrack"},
	{"world", "World"},
	{"jazz", "Jazz"},
	{"acoustic", "Acoustic"},
	{"funk", "Funk"},
	{"r-b-soul", "R&B/Soul"},
	{"devotional", "Devotional"},
	{"classical", "Classical"},
	{"reggae", "Reggae"},
	{"podcasts", "Podcasts"},
	{"country", "Country"},
	{"spoken-word", "Spoken Word"},
	{"comedy", "Comedy"},
	{"blues", "Blues"},
	{"kids", "Kids"},
	{"audiobooks", "Audiobooks"},
	{"latin", "Latin"},
}

// SortOptions lists the discover sort orders.
var SortOptions = []Option{
	{"new", "New Arrivals"},
	{"rec", "Recommended"},
	{"top", "Best Sellers"},
}

// FormatOptions lists the discover release format filters.
var FormatOptions = []Option{
	{"all", "Any Format"},
	{"digital", "Digital"},
	{"vinyl", "Vinyl"},
	{"cd", "CD"},
	{"cassette", "Cassette"},
}

// ValidGenre reports whether v is a known genre value.
func ValidGenre(v string) bool { return containsOption(Genres, v) }

// ValidSort reports whether v is a known sort value.
func ValidSort(v string) bool { return containsOption(SortOptions, v) }

// ValidFormat reports whether v is a known format value.
func ValidFormat(v string) bool { return containsOption(FormatOptions, v) }

func containsOption(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}
