package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Параметры повторов с экспоненциальной задержкой.
// MaxRetries - количество повторов после первой попытки,
// то есть всего попыток будет MaxRetries+1
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Factor       float64
}

// Детерминированная часть задержки перед повтором attempt (нумерация с нуля).
// Вынесена отдельно от джиттера, чтобы рост задержки можно было проверить
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt)))
}

// Джиттер: равномерно в [0, InitialDelay/2)
func (p Policy) jitter() time.Duration {
	half := int64(p.InitialDelay / 2)
	if half <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(half))
}

// Выполняет op, при ошибке ждет и повторяет.
// После того как все повторы исчерпаны, наружу отдается последняя ошибка.
// MaxRetries <= 0 дает ровно одну попытку без ожиданий
func Do(ctx context.Context, p Policy, op func() error) error {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var err error

	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		if attempt == retries {
			return err
		}

		if werr := Sleep(ctx, p.Delay(attempt)+p.jitter()); werr != nil {
			return werr
		}
	}
}

// Сон с уважением к контексту
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
