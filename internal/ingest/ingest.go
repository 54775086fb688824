// Package ingest fetches message headers in concurrent batches and folds
// them into per-sender counts, backing off when the provider throttles.
package ingest

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sendermap/internal/aggregate"
	"sendermap/internal/model"
)

// Ingestor drives a Fetcher over a reference list one batch at a time.
// A single Ingestor may be reused, but Run must not be called concurrently
// with itself; app.Service enforces that.
type Ingestor struct {
	cfg     Config
	lister  Lister
	fetcher *Fetcher
	sleep   sleepFunc
}

func NewIngestor(cfg Config, lister Lister, getter Getter) *Ingestor {
	cfg = cfg.withDefaults()
	return &Ingestor{
		cfg:     cfg,
		lister:  lister,
		fetcher: NewFetcher(getter, cfg.Attempts),
		sleep:   sleepCtx,
	}
}

// backoff is the adaptive inter-batch delay of one run.
type backoff struct {
	delay    time.Duration
	streak   int // consecutive throttled batches, decays by one per clean batch
	min, max time.Duration
}

func newBackoff(cfg Config) backoff {
	return backoff{delay: cfg.InitialDelay, min: cfg.MinDelay, max: cfg.MaxDelay}
}

func (b backoff) next(throttled bool) backoff {
	if throttled {
		b.streak++
		b.delay = min(time.Duration(float64(b.delay)*1.5), b.max)
		return b
	}
	if b.streak > 0 {
		b.streak--
	}
	if b.streak == 0 {
		b.delay = max(time.Duration(float64(b.delay)*0.9), b.min)
	}
	return b
}

// Run lists up to maxResults messages matching the configured query and
// ingests them. A listing failure is returned as *ListingError.
func (in *Ingestor) Run(ctx context.Context, maxResults int64, onProgress func(model.Progress)) ([]model.Sender, error) {
	refs, err := in.lister.List(ctx, in.cfg.Query, maxResults)
	if err != nil {
		return nil, &ListingError{Query: in.cfg.Query, Err: err}
	}
	log.WithFields(log.Fields{"query": in.cfg.Query, "count": len(refs)}).Info("listing_done")
	return in.Ingest(ctx, refs, onProgress)
}

type outcome struct {
	rec *model.MessageRecord
	err error
}

// Ingest fetches every ref and returns one Sender per distinct sender in
// first-seen order. Messages that cannot be fetched are dropped but still
// count as processed. Cancelling ctx stops the run and returns ctx.Err()
// with no result, even when the cancel lands during the last batch.
func (in *Ingestor) Ingest(ctx context.Context, refs []model.MessageRef, onProgress func(model.Progress)) ([]model.Sender, error) {
	total := len(refs)
	report := func(p model.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	report(model.Progress{Processed: 0, Total: total})

	tally := aggregate.NewTally()
	bo := newBackoff(in.cfg)
	processed, dropped := 0, 0

	for start := 0; start < total; start += in.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+in.cfg.BatchSize, total)
		results := in.fetchBatch(ctx, refs[start:end])
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		throttled := false
		for _, r := range results {
			if r.err != nil {
				var fe *FetchError
				if errors.As(r.err, &fe) && fe.Kind == FetchRateLimited {
					throttled = true
				}
				log.WithError(r.err).Debug("fetch_dropped")
				dropped++
				continue
			}
			tally.Add(*r.rec)
		}
		processed += len(results)
		report(model.Progress{Processed: processed, Total: total})

		bo = bo.next(throttled)
		log.WithFields(log.Fields{
			"processed": processed,
			"total":     total,
			"throttled": throttled,
			"delay":     bo.delay,
		}).Debug("batch_done")

		if end < total {
			if err := in.sleep(ctx, bo.delay); err != nil {
				return nil, err
			}
		}
	}

	log.WithFields(log.Fields{
		"processed": processed,
		"dropped":   dropped,
		"senders":   tally.Len(),
	}).Info("ingest_done")
	return tally.Senders(), nil
}

// fetchBatch starts every fetch of the batch before waiting on any of them.
func (in *Ingestor) fetchBatch(ctx context.Context, batch []model.MessageRef) []outcome {
	out := make([]outcome, len(batch))
	var g errgroup.Group
	for i, ref := range batch {
		i, ref := i, ref
		g.Go(func() error {
			rec, err := in.fetcher.Fetch(ctx, ref)
			out[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
