package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"

	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

const dateLayout = "2006-01-02"

// Файловое хранилище статей с дедупликацией по дням.
// На каждый день два файла: полный json-снимок партиции
// и jsonl-журнал, куда только дописываются новые статьи.
// Обе записи делает только это хранилище, больше файлы никто не трогает
type FeedStorage struct {
	dir string

	// Подменяется в тестах, чтобы управлять текущим днем
	now func() time.Time
}

func NewFeedStorage(dir string) (*FeedStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create feeds directory %s: %w", dir, err)
	}

	return &FeedStorage{
		dir: dir,
		now: time.Now,
	}, nil
}

// Партиция одного дня: статьи по ключу идентичности
// плюс порядок вставки, чтобы снимок на диске был стабильным
type partition struct {
	byID  map[string]model.Article
	order []string
}

func newPartition() *partition {
	return &partition{byID: make(map[string]model.Article)}
}

func (p *partition) add(id string, a model.Article) {
	if _, ok := p.byID[id]; ok {
		return
	}

	p.byID[id] = a
	p.order = append(p.order, id)
}

func (p *partition) articles() []model.Article {
	return lo.Map(p.order, func(id string, _ int) model.Article {
		return p.byID[id]
	})
}

// Сохраняет результат запроса в партицию текущего дня.
// Уже виденные сегодня статьи отбрасываются, новые дописываются
// в снимок и в jsonl-журнал. Ошибка записи на диск - жесткая:
// молча потерять статьи, признанные новыми, нельзя
func (s *FeedStorage) Store(res model.FeedResult) (model.StoreStats, error) {
	date := s.now().Format(dateLayout)
	part := s.loadPartition(date)

	// Вспомогательные множества для перекрестной проверки:
	// ссылки всех сохраненных статей и отпечатки всех сохраненных статей.
	// Отпечатки нужны и для статей со ссылкой: одна и та же статья
	// может сегодня прийти со ссылкой, а завтра без нее
	links := set.New[string]()
	hashes := set.New[string]()

	for _, a := range part.byID {
		if link := strings.TrimSpace(a.Link); link != "" {
			links.Add(link)
		}
		if h := storedHash(a); h != "" {
			hashes.Add(h)
		}
	}

	stats := model.StoreStats{TotalArticles: len(res.Articles)}

	var fresh []model.Article

	for _, a := range res.Articles {
		id := a.Identity()

		// Ни ссылки, ни отпечатка - сохранить такое нельзя
		if id == "" {
			stats.DuplicatesFound++
			continue
		}

		if _, ok := part.byID[id]; ok {
			stats.DuplicatesFound++
			continue
		}

		link := strings.TrimSpace(a.Link)
		hash := storedHash(a)

		if link != "" && links.Contains(link) {
			stats.DuplicatesFound++
			continue
		}

		if hash != "" && hashes.Contains(hash) {
			stats.DuplicatesFound++
			continue
		}

		// Новая статья. Сразу пополняем множества,
		// чтобы дубль внутри этой же пачки тоже отсеялся
		part.add(id, a)
		fresh = append(fresh, a)

		if link != "" {
			links.Add(link)
		}
		if hash != "" {
			hashes.Add(hash)
		}
	}

	stats.NewArticles = len(fresh)

	if len(fresh) > 0 {
		if err := s.writeSnapshot(date, part); err != nil {
			return model.StoreStats{}, err
		}

		if err := s.appendLog(date, fresh); err != nil {
			return model.StoreStats{}, err
		}
	}

	log.Printf("dedup for %q: %d total, %d new, %d duplicates",
		res.Query, stats.TotalArticles, stats.NewArticles, stats.DuplicatesFound)

	return stats, nil
}

// Количество уникальных статей, накопленных за день
func (s *FeedStorage) DayCount(date time.Time) int {
	return len(s.loadPartition(date.Format(dateLayout)).byID)
}

// Даты, за которые есть снимки, по возрастанию
func (s *FeedStorage) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list feeds directory: %w", err)
	}

	var dates []string

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		date := strings.TrimSuffix(name, ".json")
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}

		dates = append(dates, date)
	}

	sort.Strings(dates)

	return dates, nil
}

// Удаляет файлы партиций старше daysToKeep дней.
// Возвращает число удаленных файлов. Не горячий путь,
// вызывается отдельно от сбора
func (s *FeedStorage) Cleanup(daysToKeep int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list feeds directory: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -daysToKeep)
	removed := 0

	for _, e := range entries {
		name := e.Name()

		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".jsonl" {
			continue
		}

		date, err := time.Parse(dateLayout, strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}

		if !date.Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Printf("[ERROR] failed to remove old file %s: %v", name, err)
			continue
		}

		removed++
	}

	log.Printf("cleanup completed: removed %d old feed files", removed)

	return removed, nil
}

// Читает снимок дня. Отсутствующий или битый файл - это пустая партиция:
// доступность сегодняшнего сбора важнее, чем попытка спасти испорченный снимок
func (s *FeedStorage) loadPartition(date string) *partition {
	part := newPartition()

	data, err := os.ReadFile(s.snapshotPath(date))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[ERROR] failed to read snapshot for %s, starting fresh: %v", date, err)
		}
		return part
	}

	var articles []model.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		log.Printf("[ERROR] corrupt snapshot for %s, starting fresh: %v", date, err)
		return part
	}

	for _, a := range articles {
		id := a.Identity()
		if id == "" {
			continue
		}

		part.add(id, a)
	}

	return part
}

// Перезаписывает снимок целиком: файл на диске всегда
// отражает точное текущее состояние дня
func (s *FeedStorage) writeSnapshot(date string, part *partition) error {
	data, err := json.MarshalIndent(part.articles(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", date, err)
	}

	if err := os.WriteFile(s.snapshotPath(date), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", date, err)
	}

	return nil
}

// Дописывает новые статьи в jsonl-журнал, по записи на строку.
// Журнал никогда не переписывается и не дедуплицируется:
// это лента для внешних потребителей, каждая новая статья попадает туда ровно один раз
func (s *FeedStorage) appendLog(date string, articles []model.Article) error {
	f, err := os.OpenFile(s.logPath(date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append log for %s: %w", date, err)
	}
	defer f.Close()

	for _, a := range articles {
		line, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal article for append log: %w", err)
		}

		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write append log for %s: %w", date, err)
		}
	}

	return nil
}

func (s *FeedStorage) snapshotPath(date string) string {
	return filepath.Join(s.dir, date+".json")
}

func (s *FeedStorage) logPath(date string) string {
	return filepath.Join(s.dir, date+".jsonl")
}

// Отпечаток сохраненной статьи для перекрестной проверки.
// У статей из снимка он обычно уже посчитан, но на всякий случай
// умеем восстановить его из заголовка и даты
func storedHash(a model.Article) string {
	if a.IDHash != "" {
		return a.IDHash
	}

	return model.Fingerprint(a.Title, a.Published)
}
