package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"castdex/internal/analytics"
	"castdex/internal/config"
	"castdex/internal/indexer"
	"castdex/internal/jobs"
	"castdex/internal/metrics"
	"castdex/internal/server"
	"castdex/internal/store/rankdb"
	"castdex/internal/theme"
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
	case "user":
		cmdUser()
	case "friends":
		cmdFriends()
	case "replyguys":
		cmdReplyGuys()
	case "search":
		cmdSearch()
	case "refresh":
		cmdRefresh()
	case "trends":
		cmdTrends()
	case "stats":
		cmdStats()
	case "serve":
		cmdServe()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: castdex <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init       Create a config file at ./castdex.yaml")
	fmt.Println("  user       Look up a user profile by fid")
	fmt.Println("  friends    Rank top interacting counterparts for a fid")
	fmt.Println("  replyguys  Rank reply-dominated counterparts for a fid")
	fmt.Println("  search     Search users by name")
	fmt.Println("  refresh    Compute and store ranking snapshots once")
	fmt.Println("  trends     Show top-list changes across stored snapshots")
	fmt.Println("  stats      Show cache and rate-limit stats of a running server")
	fmt.Println("  serve      Run the JSON API server with periodic refresh")
}

func mustConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	if cfg.API.APIKey == "" {
		fmt.Println("warning: missing CASTDEX_API_KEY; API calls will fail")
	}
	return cfg
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./castdex.yaml", "path to write config")
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

func cmdUser() {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	fid := fs.Uint64("fid", 0, "subject fid")
	viewer := fs.Uint64("viewer", 0, "viewer fid (optional)")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	ix := indexer.New(cfg.IndexerOptions())
	u, err := ix.GetUser(context.Background(), *fid, *viewer)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	fmt.Printf("@%s (%s) fid=%d followers=%d following=%d casts=%d score=%.2f verified=%v\n",
		u.Username, u.DisplayName, u.FID, u.FollowerCount, u.FollowingCount, u.CastCount, u.Score, u.Verified)
}

func cmdFriends() {
	fs := flag.NewFlagSet("friends", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	fid := fs.Uint64("fid", 0, "subject fid")
	limit := fs.Int("limit", indexer.DefaultTopLimit, "how many to show")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	ix := indexer.New(cfg.IndexerOptions())
	ranked, err := ix.TopInteractions(context.Background(), *fid, *limit, indexer.ScoreOptions{})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	for i, r := range ranked {
		fmt.Printf("%2d. @%s score=%.2f likes=%d replies=%d recasts=%d\n",
			i+1, r.User.Username, r.Score, r.Tally.Likes, r.Tally.Replies, r.Tally.Recasts)
	}
}

func cmdReplyGuys() {
	fs := flag.NewFlagSet("replyguys", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	fid := fs.Uint64("fid", 0, "subject fid")
	limit := fs.Int("limit", indexer.DefaultTopLimit, "how many to show")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	ix := indexer.New(cfg.IndexerOptions())
	ranked, err := ix.ReplyGuys(context.Background(), *fid, *limit)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	for i, r := range ranked {
		fmt.Printf("%2d. @%s replies=%d score=%.2f\n", i+1, r.User.Username, r.Tally.Replies, r.Score)
	}
}

func cmdSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	query := fs.String("q", "", "search query")
	limit := fs.Int("limit", 10, "how many to show")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	ix := indexer.New(cfg.IndexerOptions())
	users, err := ix.SearchUsers(context.Background(), *query, *limit)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	for _, u := range users {
		fmt.Printf("@%s (%s) followers=%d score=%.2f\n", u.Username, u.DisplayName, u.FollowerCount, u.Score)
	}
}

func cmdRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	fid := fs.Uint64("fid", 0, "subject fid (defaults to account.fid)")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	subject := *fid
	if subject == 0 {
		subject = cfg.Account.FID
	}
	db, err := rankdb.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer db.Close()
	ix := indexer.New(cfg.IndexerOptions())
	if err := jobs.RefreshOnce(context.Background(), db, ix, subject); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	fmt.Println("Snapshots stored for fid", subject)
}

func cmdTrends() {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	fid := fs.Uint64("fid", 0, "subject fid (defaults to account.fid)")
	days := fs.Int("days", 7, "how many days back")
	kind := fs.String("kind", jobs.KindTopFriends, "snapshot kind")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	subject := *fid
	if subject == 0 {
		subject = cfg.Account.FID
	}
	db, err := rankdb.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer db.Close()
	now := time.Now().UTC()
	snaps, err := db.LoadSnapshotsRange(context.Background(), subject, *kind, now.AddDate(0, 0, -*days), now)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	points := analytics.Timeline(snaps)
	if len(points) == 0 {
		fmt.Println("No snapshots; run `castdex refresh` first.")
		return
	}
	for i, p := range points {
		fmt.Printf("%s top=%v\n", p.TS.Format(time.RFC3339), p.Top)
		if i > 0 {
			entered, left := analytics.Diff(points[i-1], p)
			if len(entered) > 0 || len(left) > 0 {
				fmt.Printf("   entered=%v left=%v\n", entered, left)
			}
		}
	}
}

func cmdStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	addr := fs.String("addr", "", "server address (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	target := cfg.Server.Addr
	if *addr != "" {
		target = *addr
	}
	if len(target) > 0 && target[0] == ':' {
		target = "localhost" + target
	}
	resp, err := http.Get("http://" + target + "/api/stats")
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var pretty map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&pretty); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./castdex.yaml", "config path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg := mustConfig(*cfgPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	metrics.StartServer(cfg.Server.MetricsAddr)

	ix := indexer.New(cfg.IndexerOptions())
	srv := server.New(cfg.Server.Addr, ix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Account.FID > 0 && cfg.Storage.DBPath != "" {
		db, err := rankdb.Open(cfg.Storage.DBPath)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		defer db.Close()
		interval := time.Duration(cfg.Account.RefreshMinutes) * time.Minute
		if interval <= 0 {
			interval = 30 * time.Minute
		}
		go func() { _ = jobs.RefreshLoop(ctx, db, ix, cfg.Account.FID, interval) }()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	theme.PrintBanner()
	if err := srv.Start(); err != nil && ctx.Err() == nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
