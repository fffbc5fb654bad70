package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/kovalyov-valentin/rss-collector/internal/backoff"
	"github.com/kovalyov-valentin/rss-collector/internal/collector"
	"github.com/kovalyov-valentin/rss-collector/internal/config"
	"github.com/kovalyov-valentin/rss-collector/internal/scheduler"
	"github.com/kovalyov-valentin/rss-collector/internal/source"
	"github.com/kovalyov-valentin/rss-collector/internal/storage"
)

func main() {
	runNow := flag.Bool("run-now", false, "run collection immediately")
	runSchedule := flag.Bool("schedule", false, "keep running and collect at the configured times")
	flag.Parse()

	cfg := config.Get()

	groups, err := config.LoadKeywordGroups(cfg.FeedsFile)
	if err != nil {
		log.Printf("[ERROR] failed to load keyword groups: %v", err)
		return
	}

	// Клиент один на все запросы, прокси настраивается здесь,
	// а не через переменные окружения процесса
	client, err := newHTTPClient(cfg)
	if err != nil {
		log.Printf("[ERROR] failed to build http client: %v", err)
		return
	}

	feedStorage, err := storage.NewFeedStorage(cfg.StorageDir)
	if err != nil {
		log.Printf("[ERROR] failed to init storage: %v", err)
		return
	}

	// Чистка старых партиций не на горячем пути, делаем на старте
	if _, err := feedStorage.Cleanup(cfg.RetentionDays); err != nil {
		log.Printf("[ERROR] failed to clean up old feeds: %v", err)
	}

	var (
		newsSource = source.NewGoogleNewsSource(
			client,
			backoff.Policy{
				MaxRetries:   cfg.RetryAttempts,
				InitialDelay: cfg.InitialDelay,
				Factor:       cfg.BackoffFactor,
			},
			cfg.RequestDelay,
			cfg.Language,
			cfg.Country,
		)
		runner = collector.New(newsSource, feedStorage, groups, cfg.KeywordPause, cfg.GroupPause)
	)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *runNow {
		runner.Run(ctx)
	}

	if *runSchedule {
		sched, err := scheduler.New(cfg.ScheduleTimes, cfg.Timezone, func(ctx context.Context) {
			runner.Run(ctx)
		})
		if err != nil {
			log.Printf("[ERROR] failed to init scheduler: %v", err)
			return
		}

		if err := sched.Start(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("[ERROR] scheduler failed: %v", err)
				return
			}

			log.Println("scheduler stopped")
		}
	}

	if !*runNow && !*runSchedule {
		log.Println("nothing to do: pass -run-now and/or -schedule")
		flag.Usage()
	}
}

func newHTTPClient(cfg config.Config) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}

		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return client, nil
}
