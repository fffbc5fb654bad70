package collector

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kovalyov-valentin/rss-collector/internal/backoff"
	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

// Источник лент. Реализован у Google News источника
type Source interface {
	Fetch(ctx context.Context, keyword string) (model.FeedResult, error)
}

// Хранилище с дедупликацией
type Storage interface {
	Store(res model.FeedResult) (model.StoreStats, error)
}

// Один проход сбора: группы ключевых слов обходятся строго последовательно,
// по каждому слову цепочка fetch -> store, между словами и группами паузы.
// Паузы - это вежливость к источнику, а не синхронизация
type Collector struct {
	source  Source
	storage Storage
	groups  []model.KeywordGroup

	// Пауза между ключевыми словами внутри группы
	keywordPause time.Duration
	// Пауза между группами
	groupPause time.Duration
}

func New(source Source, storage Storage, groups []model.KeywordGroup, keywordPause, groupPause time.Duration) *Collector {
	return &Collector{
		source:       source,
		storage:      storage,
		groups:       groups,
		keywordPause: keywordPause,
		groupPause:   groupPause,
	}
}

// Запуск одного сбора по всем группам.
// Сбой на одном ключевом слове не прерывает остальные:
// он попадает в счетчик ошибок, и обход идет дальше.
// Запуск всегда завершается сводкой, даже если часть слов отработала с ошибками
func (c *Collector) Run(ctx context.Context) model.RunStats {
	start := time.Now()

	stats := model.RunStats{RunID: uuid.NewString()}

	log.Printf("starting collection run %s", stats.RunID)

	for gi, group := range c.groups {
		log.Printf("processing keyword group %q with %d keywords", group.Name, len(group.Terms))

		for ki, keyword := range group.Terms {
			stats.TotalKeywords++
			c.collectKeyword(ctx, keyword, &stats)

			if ki < len(group.Terms)-1 {
				if err := backoff.Sleep(ctx, c.keywordPause); err != nil {
					return c.finish(stats, start)
				}
			}
		}

		if gi < len(c.groups)-1 {
			if err := backoff.Sleep(ctx, c.groupPause); err != nil {
				return c.finish(stats, start)
			}
		}
	}

	return c.finish(stats, start)
}

func (c *Collector) collectKeyword(ctx context.Context, keyword string, stats *model.RunStats) {
	res, err := c.source.Fetch(ctx, keyword)
	if err != nil {
		log.Printf("[ERROR] failed to fetch feed for keyword %q: %v", keyword, err)
		stats.Errors++
		return
	}

	// Пустая лента - валидный исход, сохранять нечего
	if len(res.Articles) == 0 {
		log.Printf("no articles for keyword %q", keyword)
		return
	}

	st, err := c.storage.Store(res)
	if err != nil {
		log.Printf("[ERROR] failed to store feed for keyword %q: %v", keyword, err)
		stats.Errors++
		return
	}

	stats.TotalArticles += st.TotalArticles
	stats.TotalNewArticles += st.NewArticles

	log.Printf("keyword %q: %d fetched, %d new, %d duplicates",
		keyword, st.TotalArticles, st.NewArticles, st.DuplicatesFound)
}

func (c *Collector) finish(stats model.RunStats, start time.Time) model.RunStats {
	stats.DurationSeconds = time.Since(start).Seconds()

	if stats.TotalKeywords > 0 {
		stats.SuccessRate = float64(stats.TotalKeywords-stats.Errors) / float64(stats.TotalKeywords) * 100
	}

	log.Printf("collection run %s completed in %.2fs: %d keywords, %d articles, %d new, %d errors, success rate %.1f%%",
		stats.RunID, stats.DurationSeconds, stats.TotalKeywords,
		stats.TotalArticles, stats.TotalNewArticles, stats.Errors, stats.SuccessRate)

	return stats
}
