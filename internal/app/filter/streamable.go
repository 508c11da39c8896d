package filter

import (
	"github.com/osa030/camper/internal/domain/catalog"
)

// StreamableFilter rejects tracks the catalog exposes no stream for.
// Bandcamp album pages list every track of a release, including those
// that are download-only or not yet published for streaming.
type StreamableFilter struct{}

// NewStreamableFilter creates a new streamable filter.
func NewStreamableFilter() *StreamableFilter {
	return &StreamableFilter{}
}

func (f *StreamableFilter) Name() string {
	return "streamable_filter"
}

func (f *StreamableFilter) Description() string {
	return "Rejects tracks without a streamable source"
}

func (f *StreamableFilter) ReturnCodes() []string {
	return []string{"not_streamable"}
}

func (f *StreamableFilter) ValidateConfig(settings map[string]any) error {
	// No settings.
	return nil
}

func (f *StreamableFilter) Check(t catalog.Track) Result {
	if t.StreamURL == "" {
		return Reject("not_streamable")
	}
	return Accept()
}

func init() {
	Register("streamable_filter", func() Filter {
		return &StreamableFilter{}
	})
}
