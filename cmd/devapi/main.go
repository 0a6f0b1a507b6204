// Command devapi runs the dashboard API against a local database with no
// Telegram connection. It adds routes to inject events and to mint signed
// initData so the Mini App can be developed offline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/eternalmod/internal/config"
	"github.com/you/eternalmod/internal/eventlog"
	"github.com/you/eternalmod/internal/httpapi"
	"github.com/you/eternalmod/internal/sink"
	"github.com/you/eternalmod/internal/stream"
)

const devToken = "000000:devapi-local-token"

func main() {
	var (
		addr      string
		sqlite    string
		token     string
		webAppDir string
		envFile   string
	)

	flag.StringVar(&addr, "addr", ":8765", "HTTP listen address")
	flag.StringVar(&sqlite, "db", "devapi.db", "SQLite database path")
	flag.StringVar(&token, "token", "", "Bot token used to sign initData (defaults to BOT_TOKEN or a local dev token)")
	flag.StringVar(&webAppDir, "webapp-dir", "webapp", "Directory holding the Mini App files")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	flag.Parse()

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Printf("devapi: %v", err)
	}
	if token == "" {
		token = os.Getenv("BOT_TOKEN")
	}
	if token == "" {
		token = devToken
	}

	s, err := sink.OpenSQLite(sqlite)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	if err := s.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	metrics := httpapi.NewMetrics()
	hub := stream.NewHub(stream.Options{Observer: metrics})
	defer hub.Close()
	events := eventlog.New(s, hub, metrics)

	api := httpapi.New(events, hub, httpapi.Options{
		Addr:          addr,
		BotToken:      token,
		WebAppDir:     webAppDir,
		CORSOrigins:   []string{"*"},
		EnableMetrics: true,
		AccessLog:     true,
		Metrics:       metrics,
		Admin:         &devRoutes{events: events, store: s, token: token},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = api.Shutdown(shutdownCtx)
	}()

	log.Printf("devapi listening on %s (db=%s)", addr, sqlite)
	if token == devToken {
		log.Printf("devapi: initData is signed with dev token %q; GET /initdata?user_id=N mints one", token)
	} else {
		log.Printf("devapi: initData is signed with BOT_TOKEN; GET /initdata?user_id=N mints one")
	}
	if err := api.Start(); err != nil {
		log.Fatal(err)
	}
}
