package source

import (
	"encoding/xml"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

const (
	// Максимальная длина выжимки, дальше текст обрезается с многоточием
	snippetMaxLen = 300
	// Минимальная длина заголовка, короче которой статья считается мусором
	minTitleLen = 10

	timeLayout = "2006-01-02T15:04:05Z"
)

// Ленты приходят в двух диалектах: rss (channel/item) и atom (entry).
// Разбираем оба одним набором структур, лишние поля просто остаются пустыми
type xmlFeed struct {
	Channel xmlChannel `xml:"channel"`
	Links   []xmlLink  `xml:"link"`
	Entries []xmlEntry `xml:"entry"`
}

type xmlChannel struct {
	Link  string     `xml:"link"`
	Items []xmlEntry `xml:"item"`
}

type xmlEntry struct {
	Title       string        `xml:"title"`
	Links       []xmlLink     `xml:"link"`
	Published   string        `xml:"published"`
	PubDate     string        `xml:"pubDate"`
	Updated     string        `xml:"updated"`
	Source      xmlSource     `xml:"source"`
	Summary     string        `xml:"summary"`
	Description string        `xml:"description"`
	Contents    []xmlContent  `xml:"content"`
	Categories  []xmlCategory `xml:"category"`
}

// У rss ссылка лежит текстом, у atom - в атрибуте href
type xmlLink struct {
	Href  string `xml:"href,attr"`
	Value string `xml:",chardata"`
}

func (l xmlLink) URL() string {
	if v := strings.TrimSpace(l.Value); v != "" {
		return v
	}

	return strings.TrimSpace(l.Href)
}

// rss: <source url="...">Издатель</source>, atom: <source><title>...</title></source>
type xmlSource struct {
	Title string `xml:"title"`
	Value string `xml:",chardata"`
}

type xmlContent struct {
	Value string `xml:",chardata"`
}

type xmlCategory struct {
	Term  string `xml:"term,attr"`
	Value string `xml:",chardata"`
}

func (c xmlCategory) term() string {
	if c.Term != "" {
		return c.Term
	}

	return strings.TrimSpace(c.Value)
}

var (
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	entityRe = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Превращает сырое содержимое ленты в нормализованный результат.
// Нечитаемый XML и лента без единой записи - это не ошибка,
// а валидный пустой результат: сеть по одному ключевому слову
// не должна ронять весь сбор
func Parse(raw []byte, query string) model.FeedResult {
	res := model.FeedResult{
		Query:    query,
		Articles: []model.Article{},
	}

	var feed xmlFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		log.Printf("[ERROR] failed to parse feed for query %q: %v", query, err)
		res.FetchedAt = nowISO()
		return res
	}

	entries := feed.Channel.Items
	if len(entries) == 0 {
		entries = feed.Entries
	}

	if len(entries) == 0 {
		res.FetchedAt = nowISO()
		return res
	}

	res.SourceURL = feedLink(feed)
	res.Articles = lo.FilterMap(entries, func(e xmlEntry, _ int) (model.Article, bool) {
		a := extractArticle(e)
		return a, isValid(a)
	})
	res.FetchedAt = nowISO()

	return res
}

func feedLink(feed xmlFeed) string {
	if link := strings.TrimSpace(feed.Channel.Link); link != "" {
		return link
	}

	for _, l := range feed.Links {
		if u := l.URL(); u != "" {
			return u
		}
	}

	return ""
}

func extractArticle(e xmlEntry) model.Article {
	title := strings.TrimSpace(e.Title)
	link := entryLink(e)

	// Сырая строка даты: published, потом pubDate, потом updated
	published := firstNonEmpty(e.Published, e.PubDate, e.Updated)

	snippet := firstNonEmpty(e.Summary, e.Description, firstContent(e))

	// Отпечаток считается по сырым строкам, до нормализации даты.
	// Порядок важен: так ведет себя дедупликация ниже по конвейеру
	hash := model.Fingerprint(title, published)

	return model.Article{
		Title:     title,
		Link:      link,
		Published: normalizeDate(published),
		Source:    extractSource(e),
		Snippet:   cleanText(snippet, snippetMaxLen),
		IDHash:    hash,
	}
}

func entryLink(e xmlEntry) string {
	for _, l := range e.Links {
		if u := l.URL(); u != "" {
			return u
		}
	}

	return ""
}

func extractSource(e xmlEntry) string {
	if title := strings.TrimSpace(e.Source.Title); title != "" {
		return title
	}

	if v := strings.TrimSpace(e.Source.Value); v != "" {
		return v
	}

	// Запасной вариант: тег, в имени которого встречается source
	for _, c := range e.Categories {
		if term := c.term(); term != "" && strings.Contains(strings.ToLower(term), "source") {
			return term
		}
	}

	return ""
}

func firstContent(e xmlEntry) string {
	if len(e.Contents) == 0 {
		return ""
	}

	return e.Contents[0].Value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

// Убирает HTML-теги и сущности, схлопывает пробелы
// и обрезает текст до maxLen рун с многоточием на конце
func cleanText(text string, maxLen int) string {
	if text == "" {
		return ""
	}

	cleaned := tagRe.ReplaceAllString(text, " ")
	cleaned = entityRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = spaceRe.ReplaceAllString(cleaned, " ")

	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		runes := []rune(cleaned)
		cleaned = strings.TrimRight(string(runes[:maxLen]), " ") + "..."
	}

	return cleaned
}

// Приводит дату к виду YYYY-MM-DDTHH:MM:SSZ.
// Если строку не удалось распознать, она возвращается как есть, только без пробелов по краям
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}

	return t.Format(timeLayout)
}

func isValid(a model.Article) bool {
	title := strings.TrimSpace(a.Title)
	if title == "" || utf8.RuneCountInString(title) < minTitleLen {
		return false
	}

	// Без ссылки и без отпечатка статью нельзя ни сохранить, ни дедуплицировать
	if strings.TrimSpace(a.Link) == "" && a.IDHash == "" {
		return false
	}

	return true
}

func nowISO() string {
	return time.Now().UTC().Format(timeLayout)
}
