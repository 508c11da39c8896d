// Package main provides the camper entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/camper/internal/app/filter"
	"github.com/osa030/camper/internal/app/mpris"
	"github.com/osa030/camper/internal/app/player"
	"github.com/osa030/camper/internal/app/queue"
	"github.com/osa030/camper/internal/domain/catalog"
	"github.com/osa030/camper/internal/infra/bandcamp"
	"github.com/osa030/camper/internal/infra/config"
	"github.com/osa030/camper/internal/infra/logger"
	"github.com/osa030/camper/internal/infra/mpv"
	"github.com/osa030/camper/internal/infra/session"
)

var (
	app        = kingpin.New("camper", "Bandcamp library and playback client")
	configPath = app.Flag("config", "Path to config file").Default("config/camper.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	startCmd = app.Command("start", "Start the player (default)").Default()
	startURL = startCmd.Arg("url", "Album URL to queue and play on startup").String()

	loginCmd     = app.Command("login", "Store the Bandcamp session cookie")
	loginCookies = loginCmd.Flag("cookies", "Cookie string (reads stdin when omitted)").String()

	logoutCmd = app.Command("logout", "Clear the stored credential")

	searchCmd    = app.Command("search", "Search the catalog and print one page")
	searchQuery  = searchCmd.Arg("query", "Search query").Required().String()
	searchTracks = searchCmd.Flag("tracks", "Search tracks instead of albums").Bool()
	searchPage   = searchCmd.Flag("page", "Page number").Default("0").Int()

	discoverCmd    = app.Command("discover", "Print one page of the discovery feed")
	discoverPreset = discoverCmd.Flag("preset", "Named preset from the config file").String()
	discoverGenre  = discoverCmd.Flag("genre", "Genre filter").Default("all").String()
	discoverTag    = discoverCmd.Flag("tag", "Subgenre tag filter").String()
	discoverSort   = discoverCmd.Flag("sort", "Sort order (new, rec, top)").Default("new").String()
	discoverFormat = discoverCmd.Flag("format", "Release format filter").Default("all").String()
	discoverPage   = discoverCmd.Flag("page", "Page number").Default("0").Int()

	libraryCmd      = app.Command("library", "Print one page of the collection")
	libraryWishlist = libraryCmd.Flag("wishlist", "Show the wishlist instead of purchases").Bool()
	libraryToken    = libraryCmd.Flag("token", "Pagination token from a previous page").String()

	listFiltersCmd = app.Command("list-filters", "List available track filters and exit")
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The logging section supplies the defaults; flags override it.
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	var runErr error
	switch command {
	case loginCmd.FullCommand():
		runErr = runLogin()
	case logoutCmd.FullCommand():
		runErr = runLogout()
	case searchCmd.FullCommand():
		runErr = runSearch(cfg)
	case discoverCmd.FullCommand():
		runErr = runDiscover(cfg)
	case libraryCmd.FullCommand():
		runErr = runLibrary(cfg)
	default:
		runErr = runStart(cfg)
	}
	if runErr != nil {
		zlog.Error().Msgf("camper: %v", runErr)
		os.Exit(1)
	}
}

func sessionDir() (string, error) {
	if dir := os.Getenv("CAMPER_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	return session.DefaultDir()
}

func openStore() (*session.Store, error) {
	dir, err := sessionDir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(dir)
}

func newClient(ctx context.Context, cfg *config.Config) (*bandcamp.Client, *session.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	if cookies := os.Getenv("CAMPER_COOKIES"); cookies != "" && !store.IsValid() {
		if err := store.Set(session.Credential{Cookies: cookies}); err != nil {
			return nil, nil, err
		}
	}
	if !store.IsValid() {
		return nil, nil, fmt.Errorf("no stored credential; run `camper login` first")
	}

	client, err := bandcamp.New(ctx, bandcamp.Config{
		BaseURL:           cfg.Bandcamp.BaseURL,
		UserAgent:         cfg.Bandcamp.UserAgent,
		RequestsPerSecond: cfg.Bandcamp.RequestsPerSecond,
		Timeout:           cfg.Bandcamp.Timeout(),
	}, store)
	if err != nil {
		return nil, nil, err
	}
	return client, store, nil
}

func runLogin() error {
	cookies := *loginCookies
	if cookies == "" {
		fmt.Fprintln(os.Stderr, "Paste the bandcamp.com cookie string and press enter:")
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		if scanner.Scan() {
			cookies = strings.TrimSpace(scanner.Text())
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	cred := session.Credential{Cookies: cookies}
	if !cred.IsValid() {
		return fmt.Errorf("cookie string has no identity cookie")
	}
	return store.Set(cred)
}

func runLogout() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.Clear()
}

// runStart wires the full playback stack: content client, mpv engine,
// queue, state machine and the MPRIS surface.
func runStart(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	zlog.Info().Str("user", client.Fan().Username).Msg("logged in")

	eng, err := mpv.New(mpv.Config{
		TickInterval: cfg.Player.TickInterval(),
		Volume:       cfg.Player.Volume,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	machine := player.NewMachine(eng, queue.New(), client, player.Config{
		LoadingTimeout: cfg.Player.LoadingTimeout(),
	})
	go machine.Run(ctx)

	if cfg.Mpris.IsEnabled() {
		adapter, err := mpris.New(machine)
		if err != nil {
			zlog.Warn().Err(err).Msg("MPRIS surface unavailable, continuing without")
		} else {
			defer adapter.Close()
			go adapter.Run(ctx)
		}
	}

	if *startURL != "" {
		if err := queueAlbum(ctx, client, machine, setupFilters(cfg), *startURL); err != nil {
			return err
		}
	}

	zlog.Info().Msg("camper running, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// printFilters prints available track filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-25s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// setupFilters initializes the track filter chain.
func setupFilters(cfg *config.Config) *filter.Chain {
	chain := filter.NewChain()

	// StreamableFilter
	chain.Add(filter.NewStreamableFilter())

	// DurationLimitFilter
	if cfg.IsFilterEnabled("duration_limit_filter") {
		f := filter.NewDurationLimitFilter()
		if err := f.ValidateConfig(cfg.FilterSettings("duration_limit_filter")); err != nil {
			zlog.Error().Msgf("failed to validate duration limit filter config: %v", err)
		} else {
			chain.Add(f)
		}
	}
	return chain
}

// queueAlbum resolves an album and starts playing it from the first track.
// Tracks the filter chain rejects are left out of the queue.
func queueAlbum(ctx context.Context, client *bandcamp.Client, machine *player.Machine, chain *filter.Chain, albumURL string) error {
	album, err := client.ResolveAlbum(ctx, albumURL)
	if err != nil {
		return err
	}
	origin := catalog.Origin{View: "album", AlbumURL: album.URL}
	entries := make([]queue.Entry, 0, len(album.Tracks))
	for _, t := range album.Tracks {
		if result := chain.Execute(t); !result.Accepted {
			zlog.Info().Str("track", t.Title).Str("code", result.Code).Msg("track filtered out")
			continue
		}
		entries = append(entries, queue.NewEntry(t, origin))
	}
	if len(entries) == 0 {
		return fmt.Errorf("album %s has no playable tracks", albumURL)
	}
	zlog.Info().Str("album", album.Title).Int("tracks", len(entries)).Msg("queueing album")
	machine.PlayEntries(entries, 0)
	return nil
}

func runSearch(cfg *config.Config) error {
	ctx := context.Background()
	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	kind := catalog.KindAlbum
	if *searchTracks {
		kind = catalog.KindTrack
	}
	results, err := client.Search(ctx, *searchQuery, kind, *searchPage)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-5s  %s — %s\n       %s\n", r.Kind, r.Artist, r.Title, r.URL)
	}
	return nil
}

func runDiscover(cfg *config.Config) error {
	ctx := context.Background()
	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	params := catalog.DiscoverParams{
		Genre:  *discoverGenre,
		Tag:    *discoverTag,
		Sort:   *discoverSort,
		Format: *discoverFormat,
		Page:   *discoverPage,
	}
	if *discoverPreset != "" {
		params, err = cfg.DiscoverPreset(*discoverPreset)
		if err != nil {
			return err
		}
	}

	items, err := client.Discover(ctx, params)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%s — %s [%s]\n       %s\n", item.Artist, item.Title, item.Genre, item.URL)
	}
	return nil
}

func runLibrary(cfg *config.Config) error {
	ctx := context.Background()
	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	kind := catalog.AcquisitionPurchased
	if *libraryWishlist {
		kind = catalog.AcquisitionWishlist
	}
	page, err := client.Library(ctx, kind, *libraryToken, 50)
	if err != nil {
		return err
	}
	for _, e := range page.Entries {
		fmt.Printf("%s — %s\n       %s\n", e.Artist, e.Title, e.URL)
	}
	if page.MoreAvailable {
		fmt.Printf("more available, next token: %s\n", page.NextToken)
	}
	return nil
}
