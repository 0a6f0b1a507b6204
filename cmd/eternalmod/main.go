package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/you/eternalmod/internal/bot"
	"github.com/you/eternalmod/internal/botwatch"
	"github.com/you/eternalmod/internal/cache"
	"github.com/you/eternalmod/internal/commands"
	"github.com/you/eternalmod/internal/config"
	"github.com/you/eternalmod/internal/eventlog"
	"github.com/you/eternalmod/internal/gate"
	httpadmin "github.com/you/eternalmod/internal/http"
	"github.com/you/eternalmod/internal/httpapi"
	"github.com/you/eternalmod/internal/media"
	"github.com/you/eternalmod/internal/reconcile"
	"github.com/you/eternalmod/internal/registry"
	"github.com/you/eternalmod/internal/settings"
	"github.com/you/eternalmod/internal/sink"
	"github.com/you/eternalmod/internal/stream"
	"github.com/you/eternalmod/internal/telegram"
	"github.com/you/eternalmod/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag     bool
		checkConfig     bool
		envFile         string
		dbPath          string
		registryPath    string
		settingsPath    string
		webAppDir       string
		port            int
		httpCorsOrigins string
		httpRateRPS     int
		httpRateBurst   int
		httpMetrics     bool
		httpAccessLog   bool
		httpPprof       bool
		verboseSkips    bool
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.BoolVar(&checkConfig, "check-config", false, "Validate configuration, print a report and exit")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.StringVar(&dbPath, "sqlite", "events.db", "Path to SQLite database file")
	flag.StringVar(&registryPath, "registry", "business_connections.json", "Path to the business connection registry")
	flag.StringVar(&settingsPath, "settings", "settings.yaml", "Path to the hot-reloaded runtime settings")
	flag.StringVar(&webAppDir, "webapp-dir", "webapp", "Directory holding the Mini App files")
	flag.IntVar(&port, "port", 8080, "HTTP port")
	flag.StringVar(&httpCorsOrigins, "http-cors-origins", "*", "Comma-separated list of allowed CORS origins")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 20, "Maximum HTTP requests per second per client")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 40, "Burst size for HTTP rate limiter")
	flag.BoolVar(&httpMetrics, "http-metrics", true, "Expose Prometheus metrics endpoint")
	flag.BoolVar(&httpAccessLog, "http-access-log", false, "Log HTTP access records")
	flag.BoolVar(&httpPprof, "http-pprof", false, "Expose pprof handlers under /debug/pprof")
	flag.BoolVar(&verboseSkips, "verbose-skips", false, "Log every skipped update")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"eternalmod version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Printf("eternalmod: %v", err)
	}
	cfg := config.Load()

	if overrides["sqlite"] {
		cfg.Storage.DBPath = strings.TrimSpace(dbPath)
	}
	if overrides["registry"] {
		cfg.Storage.RegistryPath = strings.TrimSpace(registryPath)
	}
	if overrides["settings"] {
		cfg.Storage.SettingsPath = strings.TrimSpace(settingsPath)
	}
	if overrides["webapp-dir"] {
		cfg.HTTP.WebAppDir = strings.TrimSpace(webAppDir)
	}
	if overrides["port"] {
		cfg.HTTP.Port = port
	}
	if overrides["http-cors-origins"] {
		cfg.HTTP.CORSOrigins = config.SplitList(httpCorsOrigins)
	}
	if overrides["http-rate-rps"] {
		cfg.HTTP.RateRPS = httpRateRPS
	}
	if overrides["http-rate-burst"] {
		cfg.HTTP.RateBurst = httpRateBurst
	}
	if overrides["http-metrics"] {
		cfg.HTTP.Metrics = httpMetrics
	}
	if overrides["http-access-log"] {
		cfg.HTTP.AccessLog = httpAccessLog
	}
	if overrides["http-pprof"] {
		cfg.HTTP.Pprof = httpPprof
	}

	if checkConfig {
		os.Exit(reportConfig(cfg))
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("eternalmod: %v", err)
	}
	for _, w := range cfg.Warnings() {
		log.Printf("eternalmod: warning: %s", w)
	}
	log.Printf("%s", cfg.SummaryJSON())

	initial, err := settings.Load(cfg.Storage.SettingsPath)
	if err != nil {
		log.Printf("eternalmod: %v; using defaults", err)
		initial = settings.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("eternalmod: received %s, shutting down", sig)
		cancel()
	}()

	store, err := sink.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("eternalmod: open sqlite: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("eternalmod: closing sqlite: %v", err)
		}
	}()
	if err := store.Ping(); err != nil {
		log.Fatalf("eternalmod: ping sqlite: %v", err)
	}
	if err := migrateSQLite(ctx, store.DB()); err != nil {
		log.Fatalf("eternalmod: sqlite migrate: %v", err)
	}
	if cfg.Storage.SQLiteTuning {
		store.Tune(ctx)
	}

	connections, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		log.Fatalf("eternalmod: open registry: %v", err)
	}
	log.Printf("eternalmod: registry: %d business connections", connections.Len())

	var metrics *httpapi.Metrics
	if cfg.HTTP.Metrics {
		metrics = httpapi.NewMetrics()
	}

	snapshots := cache.New(initial.CachePolicy())
	sweeper, err := cache.NewSweeper(snapshots, initial.Cache.SweepCron, metrics.CacheSwept)
	if err != nil {
		log.Fatalf("eternalmod: cache sweeper: %v", err)
	}

	hub := stream.NewHub(stream.Options{Observer: metrics})
	defer hub.Close()
	events := eventlog.New(store, hub, metrics)

	client := telegram.New(cfg.Bot.Token, telegram.Options{APIBase: cfg.Bot.APIBase})
	subs := gate.New(client, cfg.Bot.Channel, cfg.Bot.ChannelURL, initial.Subscription.Cooldown)
	pipeline := media.New(client, initial.MaxDownloadBytes(), metrics)
	reconciler := reconcile.New(reconcile.Deps{
		Cache:    snapshots,
		Registry: connections,
		Gate:     subs,
		Events:   events,
		Sender:   client,
		Media:    pipeline,
		Metrics:  metrics,
	})
	watcher := botwatch.New(store, client, cfg.Bot.OwnerID)
	handler := commands.New(client, subs, connections, snapshots, commands.Options{
		Channel:    cfg.Bot.Channel,
		ChannelURL: cfg.Bot.ChannelURL,
		WebAppURL:  cfg.Bot.WebAppURL,
	})

	dispatcher := bot.New(bot.Deps{
		Client:    client,
		Cache:     snapshots,
		Registry:  connections,
		Reconcile: reconciler,
		Watcher:   watcher,
		Commands:  handler,
		Metrics:   metrics,
	}, bot.Options{
		ImageDir:     cfg.Bot.ImageDir,
		VerboseSkips: verboseSkips,
	})
	defer dispatcher.Flush()

	applier := &settingsApplier{
		path:    cfg.Storage.SettingsPath,
		gate:    subs,
		cache:   snapshots,
		sweeper: sweeper,
		media:   pipeline,
		footer:  reconciler,
	}

	var admin httpapi.Registrar
	if cfg.HTTP.AdminToken != "" {
		admin = httpadmin.New(applier, cfg.HTTP.AdminToken)
	}

	api := httpapi.New(events, hub, httpapi.Options{
		Addr:           cfg.Addr(),
		BotToken:       cfg.Bot.Token,
		WebAppDir:      cfg.HTTP.WebAppDir,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimitRPS:   cfg.HTTP.RateRPS,
		RateLimitBurst: cfg.HTTP.RateBurst,
		EnableMetrics:  cfg.HTTP.Metrics,
		AccessLog:      cfg.HTTP.AccessLog,
		EnablePprof:    cfg.HTTP.Pprof,
		Heartbeat:      initial.Stream.Heartbeat,
		Build:          buildInfo(),
		Metrics:        metrics,
		Admin:          admin,
	})
	applier.heartbeat = api
	applier.Apply(initial)

	if err := settings.Watch(ctx, cfg.Storage.SettingsPath, applier.Apply); err != nil {
		log.Printf("eternalmod: settings watch disabled: %v", err)
	}
	go sweeper.Run(ctx)

	go func() {
		if err := api.Start(); err != nil {
			log.Printf("eternalmod: http api: %v", err)
			cancel()
		}
	}()
	log.Printf("eternalmod: http api ready on %s", cfg.Addr())

	announce(ctx, client, handler)

	poller := telegram.NewPoller(client, int(cfg.Bot.PollTimeout/time.Second))
	if err := poller.Run(ctx, dispatcher.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("eternalmod: poller stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("eternalmod: http shutdown: %v", err)
	}
	log.Printf("eternalmod: stopped")
}

// announce publishes the command menu and learns the bot username. Failures
// only cost cosmetics, so they are logged and startup continues.
func announce(ctx context.Context, client *telegram.Client, handler *commands.Handler) {
	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := client.SetMyCommands(callCtx, commands.BotCommands()); err != nil {
		log.Printf("eternalmod: setMyCommands: %v", err)
	}
	me, err := client.GetMe(callCtx)
	if err != nil {
		log.Printf("eternalmod: getMe: %v", err)
		return
	}
	handler.SetBotUsername(me.Username)
	log.Printf("eternalmod: running as @%s (id=%d)", me.Username, me.ID)
}

func buildInfo() httpapi.BuildInfo {
	build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
	if version.BuildTime != "" && version.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
			build.BuiltAt = t
		}
	}
	return build
}

// reportConfig prints a configuration check and returns the exit status.
func reportConfig(cfg config.Config) int {
	fmt.Println("Configuration check")
	fmt.Printf("  BOT_TOKEN:        %s\n", maskToken(cfg.Bot.Token))
	fmt.Printf("  OWNER_ID:         %d\n", cfg.Bot.OwnerID)
	fmt.Printf("  REQUIRED_CHANNEL: %s (%s)\n", cfg.Bot.Channel, cfg.Bot.ChannelURL)
	fmt.Printf("  WEBAPP_URL:       %s\n", cfg.Bot.WebAppURL)
	fmt.Printf("  DB_PATH:          %s\n", cfg.Storage.DBPath)
	fmt.Printf("  LISTEN:           %s\n", cfg.Addr())

	for _, w := range cfg.Warnings() {
		fmt.Printf("warning: %s\n", w)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("error: %v\n", err)
		return 1
	}
	fmt.Println("ok")
	return 0
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return "..." + token[len(token)-10:]
}
