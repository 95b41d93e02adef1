package kv

import (
	"context"
	"errors"
	"time"

	"watch-match-backend/internal/metrics"
)

// Instrumented wraps a Store and records Prometheus metrics per operation
type Instrumented struct {
	next    Store
	backend string
}

// Instrument returns store wrapped with metrics labelled by backend
func Instrument(store Store, backend string) *Instrumented {
	return &Instrumented{next: store, backend: backend}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	metrics.KVOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.KVOperations.WithLabelValues(s.backend, op, result).Inc()
}

func (s *Instrumented) Get(ctx context.Context, key string) (*Entry, error) {
	start := time.Now()
	e, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return e, err
}

func (s *Instrumented) MGet(ctx context.Context, keys []string) ([]*Entry, error) {
	start := time.Now()
	es, err := s.next.MGet(ctx, keys)
	s.observe("mget", start, err)
	return es, err
}

func (s *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	s.observe("set", start, err)
	return err
}

func (s *Instrumented) CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	start := time.Now()
	v, err := s.next.CompareAndSwap(ctx, key, value, expected)
	s.observe("cas", start, err)
	return v, err
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *Instrumented) Scan(ctx context.Context, prefix string) ([]*Entry, error) {
	start := time.Now()
	es, err := s.next.Scan(ctx, prefix)
	s.observe("scan", start, err)
	return es, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
