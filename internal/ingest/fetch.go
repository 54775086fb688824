package ingest

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"sendermap/internal/model"
)

const (
	throttleBaseDelay = 5 * time.Second
	throttleMaxDelay  = 30 * time.Second
)

var errNoRecord = errors.New("getter returned no record")

// Fetcher wraps a Getter with retries on throttling. It never touches
// aggregation state.
type Fetcher struct {
	getter   Getter
	attempts int
	sleep    sleepFunc
}

func NewFetcher(getter Getter, attempts int) *Fetcher {
	if attempts <= 0 {
		attempts = DefaultConfig().Attempts
	}
	return &Fetcher{getter: getter, attempts: attempts, sleep: sleepCtx}
}

// throttleDelay is the wait after the given zero-based attempt was
// throttled.
func throttleDelay(attempt int) time.Duration {
	if attempt >= 3 {
		// 5s << 3 is already past the cap.
		return throttleMaxDelay
	}
	return min(throttleBaseDelay<<attempt, throttleMaxDelay)
}

// Fetch retrieves ref. Throttled attempts are retried after an exponential
// delay; any other failure is returned straight away as FetchOther.
func (f *Fetcher) Fetch(ctx context.Context, ref model.MessageRef) (*model.MessageRecord, error) {
	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		rec, err := f.getter.Get(ctx, ref)
		if err == nil {
			if rec == nil {
				return nil, &FetchError{Ref: ref, Kind: FetchOther, Attempts: attempt + 1, Err: errNoRecord}
			}
			return rec, nil
		}
		if !errors.Is(err, model.ErrThrottled) {
			return nil, &FetchError{Ref: ref, Kind: FetchOther, Attempts: attempt + 1, Err: err}
		}
		lastErr = err
		if attempt == f.attempts-1 {
			break
		}

		wait := throttleDelay(attempt)
		log.WithFields(log.Fields{
			"message_id": ref.ID,
			"attempt":    attempt + 1,
			"backoff":    wait,
		}).Warn("fetch_rate_limited")
		if err := f.sleep(ctx, wait); err != nil {
			return nil, &FetchError{Ref: ref, Kind: FetchOther, Attempts: attempt + 1, Err: err}
		}
	}
	return nil, &FetchError{Ref: ref, Kind: FetchRateLimited, Attempts: f.attempts, Err: lastErr}
}
