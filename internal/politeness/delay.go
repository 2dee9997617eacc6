package politeness

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Delay делает паузу между страницами: случайное целое число секунд в [min, max].
type Delay struct {
	min, max int

	mu   sync.Mutex
	rnd  *rand.Rand
	wait func(ctx context.Context, d time.Duration) error
}

type Option func(*Delay)

// WithRand задаёт источник случайных чисел (для тестов).
func WithRand(r *rand.Rand) Option {
	return func(d *Delay) { d.rnd = r }
}

// WithWaitFunc подменяет ожидание (для тестов).
func WithWaitFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Delay) { d.wait = fn }
}

func NewDelay(minSeconds, maxSeconds int, opts ...Option) (*Delay, error) {
	if minSeconds < 0 {
		return nil, fmt.Errorf("min delay must be >= 0, got %d", minSeconds)
	}
	if minSeconds > maxSeconds {
		return nil, fmt.Errorf("min delay %d must be <= max delay %d", minSeconds, maxSeconds)
	}

	d := &Delay{
		min:  minSeconds,
		max:  maxSeconds,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
		wait: sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Next выбирает длительность следующей паузы.
func (d *Delay) Next() time.Duration {
	d.mu.Lock()
	seconds := d.min + d.rnd.Intn(d.max-d.min+1)
	d.mu.Unlock()
	return time.Duration(seconds) * time.Second
}

// Wait блокирует до конца паузы или до отмены ctx.
func (d *Delay) Wait(ctx context.Context) (time.Duration, error) {
	pause := d.Next()
	return pause, d.wait(ctx, pause)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
