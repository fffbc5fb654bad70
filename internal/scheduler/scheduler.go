package scheduler

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"time"
)

var ErrNoValidTimes = errors.New("no valid schedule times")

// Работа, которую планировщик запускает по расписанию
type JobFunc func(ctx context.Context)

type dayTime struct {
	hour   int
	minute int
}

// Планировщик ежедневных запусков в заданные моменты HH:MM.
// Свое расписание он держит сам, никакого глобального реестра задач нет
type Scheduler struct {
	times []dayTime
	loc   *time.Location
	job   JobFunc

	now func() time.Time
}

// Времена в формате HH:MM. Кривые значения пропускаются с логом,
// если не осталось ни одного валидного - планировщику нечего делать.
// Неизвестная таймзона не фатальна, берем локальную
func New(times []string, timezone string, job JobFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("[ERROR] unknown timezone %q, using local: %v", timezone, err)
		loc = time.Local
	}

	var parsed []dayTime

	for _, ts := range times {
		t, err := time.Parse("15:04", ts)
		if err != nil {
			log.Printf("[ERROR] invalid schedule time %q, skipping", ts)
			continue
		}

		parsed = append(parsed, dayTime{hour: t.Hour(), minute: t.Minute()})
	}

	if len(parsed) == 0 {
		return nil, ErrNoValidTimes
	}

	return &Scheduler{
		times: parsed,
		loc:   loc,
		job:   job,
		now:   time.Now,
	}, nil
}

// Ближайший момент запуска после now
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.In(s.loc)

	var next time.Time

	for _, dt := range s.times {
		cand := time.Date(now.Year(), now.Month(), now.Day(), dt.hour, dt.minute, 0, 0, s.loc)
		if !cand.After(now) {
			cand = cand.AddDate(0, 0, 1)
		}

		if next.IsZero() || cand.Before(next) {
			next = cand
		}
	}

	return next
}

// Крутится до отмены контекста: ждет следующего момента расписания,
// выполняет работу, снова ждет
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		now := s.now()
		next := s.NextRun(now)
		log.Printf("next collection scheduled at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.runJob(ctx)
		}
	}
}

// Запуск с перехватом паники: упавшая работа не должна убить планировщик
func (s *Scheduler) runJob(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[ERROR] panic recovered in scheduled job: %v\n%s", p, string(debug.Stack()))
		}
	}()

	start := time.Now()

	s.job(ctx)

	log.Printf("scheduled job completed in %.2fs", time.Since(start).Seconds())
}
