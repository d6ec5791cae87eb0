package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CodingLucasLi/Clawome/internal/browser"
	"github.com/CodingLucasLi/Clawome/internal/compressor"
	"github.com/CodingLucasLi/Clawome/internal/config"
)

type cliOptions struct {
	url       string
	configure string
	profiles  string
	session   string
	benchmark string
	lite      bool
	headless  bool
	debug     bool
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if !opts.debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.Load(opts.configure)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if opts.headless {
		store.Update(func(c *config.Config) { c.Headless = true })
	}

	registry := compressor.NewRegistry(opts.profiles, store, log.With().Str("comp", "compressor").Logger())
	session := browser.NewSession(store, registry, opts.session, log.With().Str("comp", "browser").Logger())
	defer func() {
		if err := session.Close(context.Background()); err != nil && err != browser.ErrNotOpen {
			log.Error().Err(err).Msg("close session")
		}
	}()

	if opts.benchmark != "" {
		runBenchmark(ctx, session, opts.benchmark)
		return
	}

	if opts.url == "" {
		fmt.Fprintln(os.Stderr, "usage: clawome -url <page> [-lite] | -benchmark <url,url,...>")
		os.Exit(2)
	}

	if _, err := session.Open(ctx, opts.url, false); err != nil {
		log.Fatal().Err(err).Msg("open page")
	}
	snap, err := session.DOM(ctx, opts.lite)
	if err != nil {
		log.Fatal().Err(err).Msg("snapshot")
	}
	fmt.Println(snap.Tree)
	fmt.Printf("\n%d -> %d nodes, %d -> %d chars (ratio %.3f), %d interactive\n",
		snap.Stats.NodesBeforeFilter, snap.Stats.NodesAfterFilter,
		snap.Stats.RawHTMLChars, snap.Stats.TreeChars,
		snap.Stats.CompressionRatio, len(snap.Interactive))
}

func runBenchmark(ctx context.Context, session *browser.Session, list string) {
	var urls []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	results, err := session.BenchmarkBatch(ctx, urls)
	if err != nil {
		log.Fatal().Err(err).Msg("benchmark")
	}
	for _, r := range results {
		if r.Err != "" {
			fmt.Printf("%s: error: %s\n", r.URL, r.Err)
			continue
		}
		fmt.Printf("%s\n  completeness %s (%d/%d lines), ratio %.3f, token saving %.1f%%\n",
			r.URL, r.CompletenessPct, r.VisibleLinesMatched, r.VisibleLinesTotal,
			r.Stats.CompressionRatio, r.TokenSaving*100)
	}
}

func parseFlags() cliOptions {
	url := flag.String("url", "", "Page to open and snapshot")
	configure := flag.String("config", ".clawome.yaml", "Path to config overrides")
	profiles := flag.String("profiles", "compressors", "Directory of user compressor profiles")
	session := flag.String("session", "", "Path to tab-session file")
	benchmark := flag.String("benchmark", "", "Comma-separated URLs to benchmark")
	lite := flag.Bool("lite", false, "Truncate long text in the rendered tree")
	headless := flag.Bool("headless", false, "Force headless mode")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()
	return cliOptions{
		url:       strings.TrimSpace(*url),
		configure: strings.TrimSpace(*configure),
		profiles:  strings.TrimSpace(*profiles),
		session:   strings.TrimSpace(*session),
		benchmark: strings.TrimSpace(*benchmark),
		lite:      *lite,
		headless:  *headless,
		debug:     *debug,
	}
}
