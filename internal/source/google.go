package source

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/kovalyov-valentin/rss-collector/internal/backoff"
	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

const (
	searchBaseURL = "https://news.google.com/rss/search"

	userAgent = "rss-collector/1.0"

	// Верхняя граница джиттера вежливой паузы перед запросом
	politeJitter = 500 * time.Millisecond
)

// Клиент поисковых лент Google News.
// HTTP-клиент приходит снаружи уже настроенным (таймаут, прокси),
// источник не трогает никакого глобального состояния
type GoogleNewsSource struct {
	client *http.Client
	policy backoff.Policy
	// Вежливая пауза перед каждым запросом, не зависит от повторов
	requestDelay time.Duration
	language     string
	country      string

	// Подменяется в тестах
	baseURL string
}

func NewGoogleNewsSource(client *http.Client, policy backoff.Policy, requestDelay time.Duration, language, country string) *GoogleNewsSource {
	return &GoogleNewsSource{
		client:       client,
		policy:       policy,
		requestDelay: requestDelay,
		language:     language,
		country:      country,
		baseURL:      searchBaseURL,
	}
}

// Адрес поисковой ленты для ключевого слова
func (s *GoogleNewsSource) BuildURL(keyword string) string {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("hl", s.language)
	params.Set("gl", s.country)
	params.Set("ceid", s.country+":"+s.language)

	return s.baseURL + "?" + params.Encode()
}

// Забирает и нормализует ленту по ключевому слову.
// Ошибка здесь значит "лента не получена после всех повторов",
// решать, что с этим делать, будет вызывающая сторона
func (s *GoogleNewsSource) Fetch(ctx context.Context, keyword string) (model.FeedResult, error) {
	feedURL := s.BuildURL(keyword)

	// Пауза с джиттером, чтобы запросы не шли предсказуемой очередью
	delay := s.requestDelay
	if politeJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(politeJitter)))
	}
	if err := backoff.Sleep(ctx, delay); err != nil {
		return model.FeedResult{}, err
	}

	raw, err := s.fetchRaw(ctx, feedURL)
	if err != nil {
		return model.FeedResult{}, fmt.Errorf("fetch feed for %q: %w", keyword, err)
	}

	res := Parse(raw, keyword)
	if res.SourceURL == "" {
		res.SourceURL = feedURL
	}

	return res, nil
}

func (s *GoogleNewsSource) fetchRaw(ctx context.Context, feedURL string) ([]byte, error) {
	var raw []byte

	err := backoff.Do(ctx, s.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return err
		}

		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml;q=0.9")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// Любой не-2xx статус считаем временным сбоем и повторяем
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		raw, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}

	return raw, nil
}
