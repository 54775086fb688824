package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendermap/internal/model"
)

// getterFunc adapts a function to the Getter interface and counts calls.
type getterFunc struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ref model.MessageRef, call int) (*model.MessageRecord, error)
}

func newGetter(fn func(ref model.MessageRef, call int) (*model.MessageRecord, error)) *getterFunc {
	return &getterFunc{calls: make(map[string]int), fn: fn}
}

func (g *getterFunc) Get(_ context.Context, ref model.MessageRef) (*model.MessageRecord, error) {
	g.mu.Lock()
	g.calls[ref.ID]++
	call := g.calls[ref.ID]
	g.mu.Unlock()
	return g.fn(ref, call)
}

func (g *getterFunc) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func throttled(id string) error {
	return fmt.Errorf("get %s: %w", id, model.ErrThrottled)
}

func TestThrottleDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tc := range tests {
		if got := throttleDelay(tc.attempt); got != tc.want {
			t.Errorf("throttleDelay(%d) = %v; want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestFetcher_RetriesThrottled(t *testing.T) {
	g := newGetter(func(ref model.MessageRef, call int) (*model.MessageRecord, error) {
		if call < 3 {
			return nil, throttled(ref.ID)
		}
		return &model.MessageRecord{Ref: ref, From: "a@x.com"}, nil
	})
	rec := &sleepRecorder{}
	f := NewFetcher(g, 3)
	f.sleep = rec.sleep

	got, err := f.Fetch(context.Background(), model.MessageRef{ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.From)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.recorded())
	assert.Equal(t, 3, g.total())
}

func TestFetcher_ExhaustsRetries(t *testing.T) {
	g := newGetter(func(ref model.MessageRef, _ int) (*model.MessageRecord, error) {
		return nil, throttled(ref.ID)
	})
	rec := &sleepRecorder{}
	f := NewFetcher(g, 3)
	f.sleep = rec.sleep

	got, err := f.Fetch(context.Background(), model.MessageRef{ID: "m1"})
	assert.Nil(t, got)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchRateLimited, fe.Kind)
	assert.Equal(t, 3, fe.Attempts)
	assert.ErrorIs(t, err, model.ErrThrottled)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.recorded(), "no wait after the last attempt")
	assert.Equal(t, 3, g.total())
}

func TestFetcher_OtherErrorFailsFast(t *testing.T) {
	boom := errors.New("boom")
	g := newGetter(func(model.MessageRef, int) (*model.MessageRecord, error) {
		return nil, boom
	})
	rec := &sleepRecorder{}
	f := NewFetcher(g, 3)
	f.sleep = rec.sleep

	_, err := f.Fetch(context.Background(), model.MessageRef{ID: "m1"})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchOther, fe.Kind)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, 1, g.total())
}

func TestFetcher_CancelledDuringBackoff(t *testing.T) {
	g := newGetter(func(ref model.MessageRef, _ int) (*model.MessageRecord, error) {
		return nil, throttled(ref.ID)
	})
	rec := &sleepRecorder{err: context.Canceled}
	f := NewFetcher(g, 3)
	f.sleep = rec.sleep

	_, err := f.Fetch(context.Background(), model.MessageRef{ID: "m1"})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchOther, fe.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, g.total())
}

func TestFetcher_NilRecordIsOtherFailure(t *testing.T) {
	g := newGetter(func(model.MessageRef, int) (*model.MessageRecord, error) {
		return nil, nil
	})
	f := NewFetcher(g, 3)
	f.sleep = (&sleepRecorder{}).sleep

	got, err := f.Fetch(context.Background(), model.MessageRef{ID: "m1"})
	assert.Nil(t, got)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchOther, fe.Kind)
	assert.Equal(t, 1, g.total())
}
