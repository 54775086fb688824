package ingest

import (
	"context"
	"fmt"
	"time"

	"sendermap/internal/model"
)

//go:generate mockgen -destination=mocks/mock_ingest.go -package=mocks sendermap/internal/ingest Lister,Getter

// Lister returns the references of the messages matching query, at most
// max of them.
type Lister interface {
	List(ctx context.Context, query string, max int64) ([]model.MessageRef, error)
}

// Getter fetches the headers of a single message. Throttling responses
// must wrap model.ErrThrottled so they can be told apart from other
// failures.
type Getter interface {
	Get(ctx context.Context, ref model.MessageRef) (*model.MessageRecord, error)
}

type Config struct {
	Query        string
	BatchSize    int
	Attempts     int           // fetch attempts per message
	InitialDelay time.Duration // inter-batch delay at the start of a run
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Query:        "is:unread",
		BatchSize:    50,
		Attempts:     3,
		InitialDelay: 500 * time.Millisecond,
		MinDelay:     300 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Query == "" {
		c.Query = def.Query
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Attempts <= 0 {
		c.Attempts = def.Attempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MinDelay <= 0 {
		c.MinDelay = def.MinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	return c
}

// ListingError aborts a run: without the reference set there is nothing to
// ingest.
type ListingError struct {
	Query string
	Err   error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list messages %q: %v", e.Query, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

type FetchErrorKind int

const (
	FetchOther FetchErrorKind = iota
	FetchRateLimited
)

func (k FetchErrorKind) String() string {
	if k == FetchRateLimited {
		return "rate_limited"
	}
	return "other"
}

// FetchError is returned by Fetcher.Fetch. The ingestor drops the message
// and carries on.
type FetchError struct {
	Ref      model.MessageRef
	Kind     FetchErrorKind
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message %s (%s after %d attempts): %v", e.Ref.ID, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
