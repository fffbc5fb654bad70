package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

var ErrNoKeywordGroups = errors.New("at least one keyword group with terms is required")

// Настройки собираются один раз на старте в плоскую структуру,
// дальше по ней никто динамически не ходит.
// Файл в формате hcl, поверх него переменные окружения
type Config struct {
	// Файл с группами ключевых слов
	FeedsFile string `hcl:"feeds_file" env:"FEEDS_FILE" default:"./config/feeds.json"`
	// Каталог дневных партиций
	StorageDir string `hcl:"storage_dir" env:"STORAGE_DIR" default:"./feeds"`
	// Сколько дней хранить старые партиции
	RetentionDays int `hcl:"retention_days" env:"RETENTION_DAYS" default:"30"`

	// Таймаут одного HTTP-запроса
	Timeout time.Duration `hcl:"timeout" env:"TIMEOUT" default:"30s"`
	// Количество повторов после неудачной попытки
	RetryAttempts int `hcl:"retry_attempts" env:"RETRY_ATTEMPTS" default:"3"`
	// Начальная задержка перед повтором
	InitialDelay time.Duration `hcl:"initial_delay" env:"INITIAL_DELAY" default:"1s"`
	// Множитель роста задержки
	BackoffFactor float64 `hcl:"backoff_factor" env:"BACKOFF_FACTOR" default:"2"`
	// Вежливая пауза перед каждым запросом
	RequestDelay time.Duration `hcl:"request_delay" env:"REQUEST_DELAY" default:"1s"`

	// Пауза между ключевыми словами
	KeywordPause time.Duration `hcl:"keyword_pause" env:"KEYWORD_PAUSE" default:"10s"`
	// Пауза между группами
	GroupPause time.Duration `hcl:"group_pause" env:"GROUP_PAUSE" default:"5m"`

	// Времена ежедневных запусков, HH:MM
	ScheduleTimes []string `hcl:"schedule_times" env:"SCHEDULE_TIMES"`
	Timezone      string   `hcl:"timezone" env:"TIMEZONE" default:"Asia/Kolkata"`

	// Прокси для HTTP-клиента, пустая строка - без прокси
	ProxyURL string `hcl:"proxy_url" env:"PROXY_URL"`

	// Параметры поисковой ленты
	Language string `hcl:"language" env:"LANGUAGE" default:"en"`
	Country  string `hcl:"country" env:"COUNTRY" default:"IN"`
}

var (
	cfg  Config
	once sync.Once
)

func Get() Config {
	once.Do(func() {
		loader := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix: "RSSC",
			Files:     []string{"./config.hcl", "./config.local.hcl"},
			FileDecoders: map[string]aconfig.FileDecoder{
				".hcl": aconfighcl.New(),
			},
		})

		if err := loader.Load(); err != nil {
			log.Printf("[ERROR] failed to load config: %v", err)
		}
	})

	return cfg
}

// Читает группы ключевых слов из json-файла вида [{"name": ..., "terms": [...]}].
// Пустые термы и группы без термов отбрасываются с логом,
// совсем пустой список - ошибка конфигурации
func LoadKeywordGroups(path string) ([]model.KeywordGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var groups []model.KeywordGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	for i := range groups {
		if strings.TrimSpace(groups[i].Name) == "" {
			groups[i].Name = fmt.Sprintf("Group %d", i+1)
		}

		groups[i].Terms = lo.FilterMap(groups[i].Terms, func(term string, _ int) (string, bool) {
			term = strings.TrimSpace(term)
			return term, term != ""
		})

		if len(groups[i].Terms) == 0 {
			log.Printf("no valid keywords in group %q, skipping", groups[i].Name)
		}
	}

	groups = lo.Filter(groups, func(g model.KeywordGroup, _ int) bool {
		return len(g.Terms) > 0
	})

	if len(groups) == 0 {
		return nil, ErrNoKeywordGroups
	}

	return groups, nil
}
