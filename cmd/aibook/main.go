package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aibook/internal/analytics"
	"aibook/internal/config"
	"aibook/internal/journal"
	"aibook/internal/logging"
	"aibook/internal/metrics"
	"aibook/internal/model"
	"aibook/internal/provider"
	"aibook/internal/provider/gemini"
	"aibook/internal/provider/offline"
	"aibook/internal/sim"
	"aibook/internal/store"
	"aibook/internal/theme"
	"aibook/internal/web"
)

func main() {
	_ = godotenv.Load()

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "serve":
		cmdServe()
	case "run":
		cmdRun()
	case "monitor":
		cmdMonitor()
	case "version":
		fmt.Println("aibook", version)
	default:
		printHelp()
	}
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: aibook <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init      Create a config file at ./aibook.yaml")
	fmt.Println("  serve     Run the simulation behind the HTTP gateway")
	fmt.Println("  run       Run the simulation headless for a fixed duration")
	fmt.Println("  monitor   Show hourly activity from a session journal")
	fmt.Println("  version   Print the build version")
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./aibook.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ResolveEnv()
	return cfg
}

// buildEngine assembles a session from config. Without an API key the engine
// runs on the offline provider for the whole session.
func buildEngine(ctx context.Context, cfg config.Config) (*sim.Engine, error) {
	var real provider.ActionProvider
	if cfg.Provider.APIKey != "" {
		p, err := gemini.New(ctx, gemini.Options{
			APIKey:     cfg.Provider.APIKey,
			TextModel:  cfg.Provider.TextModel,
			ImageModel: cfg.Provider.ImageModel,
			RPS:        cfg.Provider.RPS,
			Burst:      cfg.Provider.Burst,
		})
		if err != nil {
			return nil, err
		}
		real = p
	} else {
		fmt.Println("warning: missing GEMINI_API_KEY; running on the offline model")
	}

	db, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		return nil, err
	}
	var transcript *journal.TranscriptWriter
	if cfg.Storage.TranscriptDir != "" {
		transcript, err = journal.NewTranscriptWriter(cfg.Storage.TranscriptDir)
		if err != nil {
			return nil, err
		}
	}

	user := model.NewUserCharacter(cfg.User.Name)
	return sim.NewEngine(sim.Options{
		Config:     cfg,
		Graph:      store.New(cfg.Characters(), user),
		Real:       real,
		Offline:    offline.New(),
		DB:         db,
		Transcript: transcript,
	}), nil
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./aibook.yaml", "config path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	autostart := fs.Bool("autostart", false, "start the simulation immediately")
	_ = fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer eng.Close()

	metrics.StartServer(cfg.Server.MetricsAddr)
	if *autostart {
		eng.Scheduler().Start()
	}

	theme.PrintBanner()
	fmt.Println("Listening on", cfg.Server.ListenAddr)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: web.NewServer(eng).Handler()}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	logging.Info("server stopped", nil)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./aibook.yaml", "config path")
	dur := fs.Duration("for", 2*time.Minute, "how long to run")
	_ = fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer eng.Close()

	theme.PrintBanner()
	if !eng.Scheduler().Start() {
		fmt.Println("error: could not start the simulation")
		os.Exit(1)
	}

	sub := eng.Feed().Subscribe()
	defer eng.Feed().Unsubscribe(sub)
	timeout := time.After(*dur)
	for {
		select {
		case line := <-sub:
			fmt.Println(line)
		case <-timeout:
			eng.Scheduler().Stop()
			st := eng.State()
			fmt.Printf("Done: %d posts, %d groups, %d/%d API calls\n",
				len(st.Posts), len(st.Groups), st.APICalls, st.APICallLimit)
			return
		}
	}
}

func cmdMonitor() {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	journalPath := fs.String("journal", "./aibook.db", "session journal path")
	hours := fs.Int("hours", 24, "window size in hours")
	_ = fs.Parse(os.Args[2:])

	db, err := journal.Open(*journalPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer db.Close()

	end := time.Now().UTC().Add(time.Hour)
	start := end.Add(-time.Duration(*hours+1) * time.Hour)
	actions, err := db.LoadActionsRange(context.Background(), start, end, "")
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	buckets := analytics.HourlyActivity(actions)
	for _, hour := range analytics.SortedBucketKeys(buckets) {
		fmt.Printf("%s:", hour.Format("2006-01-02 15:00"))
		for typ, n := range buckets[hour] {
			fmt.Printf(" %s=%d", typ, n)
		}
		fmt.Println()
	}
}
