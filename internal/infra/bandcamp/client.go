// Package bandcamp provides an authenticated client for the Bandcamp
// catalog API and its album pages.
package bandcamp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/camper/internal/domain/catalog"
	"github.com/osa030/camper/internal/infra/session"
)

const defaultBaseURL = "https://bandcamp.com"

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

// Config represents Bandcamp client configuration.
type Config struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// FanInfo identifies the logged-in fan account.
type FanInfo struct {
	FanID    int64
	Username string
}

// Client is an authenticated Bandcamp API client. The session credential is
// borrowed from the store per request, so a re-login takes effect without
// rebuilding the client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	sessions   *session.Store
	limiter    *rate.Limiter
	fan        FanInfo
}

// New creates a client and verifies the stored credential by fetching the
// fan's collection summary. A missing or rejected credential surfaces as
// ErrAuthExpired so the caller can trigger a login.
func New(ctx context.Context, cfg Config, sessions *session.Store) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sessions:   sessions,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}

	fan, err := c.fetchFanInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.fan = fan
	return c, nil
}

// Fan returns the logged-in fan identity.
func (c *Client) Fan() FanInfo {
	return c.fan
}

type collectionSummaryResponse struct {
	CollectionSummary *struct {
		FanID    int64   `json:"fan_id"`
		Username *string `json:"username"`
	} `json:"collection_summary"`
}

func (c *Client) fetchFanInfo(ctx context.Context) (FanInfo, error) {
	body, err := c.get(ctx, c.baseURL+"/api/fan/2/collection_summary", true)
	if err != nil {
		return FanInfo{}, err
	}

	var resp collectionSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return FanInfo{}, errors.Mark(errors.Wrap(err, "failed to parse collection summary"), ErrParse)
	}
	if resp.CollectionSummary == nil {
		// The endpoint answers 200 with an empty summary for stale cookies.
		return FanInfo{}, errors.Mark(errors.New("collection summary missing"), ErrAuthExpired)
	}

	fan := FanInfo{FanID: resp.CollectionSummary.FanID}
	if resp.CollectionSummary.Username != nil {
		fan.Username = *resp.CollectionSummary.Username
	}
	return fan, nil
}

// Search queries the public autocomplete endpoint. Results are one finite
// page; the caller drives further pages explicitly.
func (c *Client) Search(ctx context.Context, query string, kind catalog.EntityKind, page int) ([]catalog.SearchResult, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}

	filter := "a"
	if kind == catalog.KindTrack {
		filter = "t"
	}

	payload := map[string]any{
		"search_text":   query,
		"search_filter": filter,
		"full_page":     true,
		"fan_id":        c.fan.FanID,
	}
	if page > 0 {
		payload["page"] = page
	}

	body, err := c.post(ctx, c.baseURL+"/api/bcsearch_public_api/1/autocomplete_elastic", payload, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Auto struct {
			Results []json.RawMessage `json:"results"`
		} `json:"auto"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse search response"), ErrParse)
	}

	results := make([]catalog.SearchResult, 0, len(envelope.Auto.Results))
	for i, raw := range envelope.Auto.Results {
		r, err := parseSearchResult(raw)
		if err != nil {
			zlog.Warn().Err(err).Int("record", i).Msg("bandcamp: skipping malformed search result")
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

type rawSearchResult struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	BandName    string `json:"band_name"`
	ArtID       *int64 `json:"art_id"`
	ItemURLPath string `json:"item_url_path"`
}

func parseSearchResult(raw json.RawMessage) (catalog.SearchResult, error) {
	var r rawSearchResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return catalog.SearchResult{}, errors.Mark(err, ErrParse)
	}
	if r.Name == "" || r.ItemURLPath == "" {
		return catalog.SearchResult{}, errors.Mark(errors.New("missing name or url"), ErrParse)
	}

	kind := catalog.KindAlbum
	if r.Type == "t" {
		kind = catalog.KindTrack
	}
	res := catalog.SearchResult{
		Kind:   kind,
		Title:  r.Name,
		Artist: r.BandName,
		URL:    r.ItemURLPath,
	}
	if r.ArtID != nil {
		res.ArtURL = catalog.ArtURLThumb(*r.ArtID)
	}
	return res, nil
}

// Discover fetches one page of the discovery feed for the given filter
// parameters. Filter values are opaque query inputs.
func (c *Client) Discover(ctx context.Context, params catalog.DiscoverParams) ([]catalog.DiscoveryItem, error) {
	url := fmt.Sprintf("%s/api/discover/3/get_web?g=%s&s=%s&p=%d&gn=%s&f=%s&w=0&lo=0",
		c.baseURL, params.Genre, params.Sort, params.Page, params.Tag, params.Format)

	body, err := c.get(ctx, url, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse discover response"), ErrParse)
	}

	items := make([]catalog.DiscoveryItem, 0, len(envelope.Items))
	for i, raw := range envelope.Items {
		item, err := parseDiscoveryItem(raw)
		if err != nil {
			zlog.Warn().Err(err).Int("record", i).Msg("bandcamp: skipping malformed discover item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

type rawDiscoverItem struct {
	PrimaryText   string `json:"primary_text"`
	SecondaryText string `json:"secondary_text"`
	ArtID         *int64 `json:"art_id"`
	GenreText     string `json:"genre_text"`
	URLHints      *struct {
		Subdomain string `json:"subdomain"`
		Slug      string `json:"slug"`
		ItemType  string `json:"item_type"`
	} `json:"url_hints"`
}

func parseDiscoveryItem(raw json.RawMessage) (catalog.DiscoveryItem, error) {
	var r rawDiscoverItem
	if err := json.Unmarshal(raw, &r); err != nil {
		return catalog.DiscoveryItem{}, errors.Mark(err, ErrParse)
	}
	if r.URLHints == nil || r.URLHints.Subdomain == "" || r.URLHints.Slug == "" {
		return catalog.DiscoveryItem{}, errors.Mark(errors.New("missing url hints"), ErrParse)
	}

	typePath := "album"
	if r.URLHints.ItemType == "t" {
		typePath = "track"
	}
	item := catalog.DiscoveryItem{
		Title:  r.PrimaryText,
		Artist: r.SecondaryText,
		Genre:  r.GenreText,
		URL:    fmt.Sprintf("https://%s.bandcamp.com/%s/%s", r.URLHints.Subdomain, typePath, r.URLHints.Slug),
	}
	if r.ArtID != nil {
		item.ArtURL = catalog.ArtURLThumb(*r.ArtID)
	}
	return item, nil
}

// LibraryPage is one page of the fan's collection or wishlist. NextToken
// drives the following page; the client never materializes the whole
// collection on the caller's behalf.
type LibraryPage struct {
	Entries       []catalog.LibraryEntry
	NextToken     string
	MoreAvailable bool
}

// FirstPageToken returns the pagination token for the newest items.
func FirstPageToken() string {
	return fmt.Sprintf("%d::a::", time.Now().Unix())
}

// Library fetches one page of the purchased collection or the wishlist.
func (c *Client) Library(ctx context.Context, kind catalog.AcquisitionKind, olderThanToken string, count int) (*LibraryPage, error) {
	endpoint := "/api/fancollection/1/collection_items"
	if kind == catalog.AcquisitionWishlist {
		endpoint = "/api/fancollection/1/wishlist_items"
	}
	if olderThanToken == "" {
		olderThanToken = FirstPageToken()
	}
	if count <= 0 {
		count = 50
	}

	payload := map[string]any{
		"fan_id":           c.fan.FanID,
		"older_than_token": olderThanToken,
		"count":            count,
	}
	body, err := c.post(ctx, c.baseURL+endpoint, payload, true)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Items         []json.RawMessage `json:"items"`
		MoreAvailable bool              `json:"more_available"`
		LastToken     *string           `json:"last_token"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse collection response"), ErrParse)
	}

	page := &LibraryPage{
		Entries:       make([]catalog.LibraryEntry, 0, len(envelope.Items)),
		MoreAvailable: envelope.MoreAvailable,
	}
	if envelope.LastToken != nil {
		page.NextToken = *envelope.LastToken
	}
	if envelope.MoreAvailable && page.NextToken == "" {
		return nil, errors.Mark(errors.New("missing pagination token"), ErrParse)
	}

	for i, raw := range envelope.Items {
		entry, err := parseLibraryEntry(raw, kind)
		if err != nil {
			zlog.Warn().Err(err).Int("record", i).Msg("bandcamp: skipping malformed collection item")
			continue
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

// Collection item timestamps use Bandcamp's legacy GMT date layout.
const addedDateLayout = "02 Jan 2006 15:04:05 MST"

type rawCollectionItem struct {
	ItemTitle string `json:"item_title"`
	BandName  string `json:"band_name"`
	ItemArtID *int64 `json:"item_art_id"`
	ItemURL   string `json:"item_url"`
	Added     string `json:"added"`
}

func parseLibraryEntry(raw json.RawMessage, kind catalog.AcquisitionKind) (catalog.LibraryEntry, error) {
	var r rawCollectionItem
	if err := json.Unmarshal(raw, &r); err != nil {
		return catalog.LibraryEntry{}, errors.Mark(err, ErrParse)
	}
	if r.ItemURL == "" {
		return catalog.LibraryEntry{}, errors.Mark(errors.New("missing item url"), ErrParse)
	}

	entry := catalog.LibraryEntry{
		Kind:   kind,
		Title:  r.ItemTitle,
		Artist: r.BandName,
		URL:    r.ItemURL,
	}
	if r.ItemArtID != nil {
		entry.ArtURL = catalog.ArtURLThumb(*r.ItemArtID)
	}
	if r.Added != "" {
		if t, err := time.Parse(addedDateLayout, r.Added); err == nil {
			entry.AcquiredAt = &t
		}
	}
	return entry, nil
}

// get performs a rate-limited GET. withAuth attaches the session cookie.
func (c *Client) get(ctx context.Context, url string, withAuth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	return c.do(req, withAuth)
}

// post performs a rate-limited JSON POST. withAuth attaches the session cookie.
func (c *Client) post(ctx context.Context, url string, payload any, withAuth bool) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, withAuth)
}

func (c *Client) do(req *http.Request, withAuth bool) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limiter interrupted")
	}

	req.Header.Set("User-Agent", c.userAgent)
	if withAuth {
		cred, ok := c.sessions.Current()
		if !ok || !cred.IsValid() {
			return nil, errors.Mark(errors.New("no valid credential"), ErrAuthExpired)
		}
		req.Header.Set("Cookie", cred.Cookies)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "request failed"), ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read response body"), ErrNetwork)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Mark(errors.Newf("authentication rejected (status %d)", resp.StatusCode), ErrAuthExpired)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Mark(errors.Newf("%s not found", req.URL.Path), ErrNotFound)
	case resp.StatusCode >= 400:
		return nil, errors.Mark(errors.Newf("unexpected status %d", resp.StatusCode), ErrNetwork)
	}

	return body, nil
}
