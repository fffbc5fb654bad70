package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Статья, извлеченная из ленты поисковой выдачи
type Article struct {
	// Заголовок статьи
	Title string `json:"title"`
	// Ссылка, может быть пустой
	Link string `json:"link"`
	// Дата публикации, нормализованная в ISO-8601.
	// Если дату распарсить не удалось, здесь остается исходная строка как есть
	Published string `json:"published"`
	// Имя издателя
	Source string `json:"source"`
	// Краткая выжимка без HTML
	Snippet string `json:"snippet"`
	// Отпечаток содержимого: sha256 от сырых title и published
	IDHash string `json:"id_hash"`
}

// Ключ дедупликации: ссылка, если она есть, иначе отпечаток.
// Статья без того и другого идентификатора не имеет и сохранена быть не может
func (a Article) Identity() string {
	if link := strings.TrimSpace(a.Link); link != "" {
		return link
	}

	if a.IDHash != "" {
		return a.IDHash
	}

	return Fingerprint(a.Title, a.Published)
}

// Отпечаток по сырым строкам заголовка и даты публикации.
// Считается до нормализации даты, поэтому для записи без ссылки
// он же служит запасным ключом дедупликации
func Fingerprint(title, published string) string {
	title = strings.TrimSpace(title)
	published = strings.TrimSpace(published)

	if title == "" && published == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(title + "|" + published))

	return hex.EncodeToString(sum[:])
}

// Результат одного запроса к ленте по ключевому слову
type FeedResult struct {
	// Момент завершения нормализации, ISO-8601 UTC
	FetchedAt string `json:"fetched_at"`
	// Ключевое слово, по которому строился запрос
	Query string `json:"query"`
	// Ссылка ленты на саму себя, либо запрошенный URL, если лента ее не объявила
	SourceURL string `json:"source_url"`
	// Статьи в порядке следования в ленте
	Articles []Article `json:"articles"`
}

// Итог одного вызова хранилища
type StoreStats struct {
	NewArticles     int `json:"new_articles"`
	DuplicatesFound int `json:"duplicates_found"`
	TotalArticles   int `json:"total_articles"`
}

// Группа ключевых слов из файла со списком лент
type KeywordGroup struct {
	Name  string   `json:"name"`
	Terms []string `json:"terms"`
}

// Сводка по одному запуску сбора
type RunStats struct {
	RunID            string  `json:"run_id"`
	TotalKeywords    int     `json:"total_keywords"`
	Errors           int     `json:"errors"`
	TotalArticles    int     `json:"total_articles"`
	TotalNewArticles int     `json:"total_new_articles"`
	SuccessRate      float64 `json:"success_rate"`
	DurationSeconds  float64 `json:"duration_seconds"`
}
