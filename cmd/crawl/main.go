package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/app"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/config"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/logger"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crawl failed: %v\n", err)
		os.Exit(1)
	}
}

// run executes one pass over the requested site (or every site) and exits.
func run() error {
	siteFlag := flag.String("site", "", "site id to crawl (default: all configured sites)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	harvester, err := app.NewHarvester(ctx, cfg)
	if err != nil {
		logger.ErrorObj("failed to initialize harvester", "error", err.Error())
		return err
	}

	ids, err := resolveSiteIDs(cfg, *siteFlag)
	if err != nil {
		return err
	}

	for _, id := range ids {
		stats, err := harvester.RunSiteOnce(ctx, id)
		if err != nil {
			return fmt.Errorf("crawl %s: %w", id, err)
		}
		logger.InfoObj("crawl pass completed", "crawl_meta", stats)
	}
	return nil
}

func resolveSiteIDs(cfg *config.Config, flagValue string) ([]string, error) {
	flagValue = strings.TrimSpace(flagValue)
	if flagValue != "" {
		return []string{flagValue}, nil
	}

	// No -site flag: crawl every configured site in order.
	reg, err := sites.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("load sites registry: %w", err)
	}
	var ids []string
	for _, s := range reg.All() {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
