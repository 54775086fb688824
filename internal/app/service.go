// Package app ties ingestion, the cache and grouping together behind the
// operations the CLI and the terminal UI call.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"sendermap/internal/aggregate"
	"sendermap/internal/cache"
	"sendermap/internal/ingest"
	"sendermap/internal/model"
	"sendermap/internal/treemap"
)

var (
	ErrIngestionInProgress = errors.New("an ingestion run is already in progress")
	ErrNotConnected        = errors.New("not signed in to a mailbox")
)

type Service struct {
	cfg     ingest.Config
	cache   *cache.Cache
	signOut func() error

	running atomic.Bool

	mu       sync.Mutex
	ingestor *ingest.Ingestor
	senders  []model.Sender
	total    int
	cutoff   int
	mode     model.Mode
	progress model.Progress
}

// NewService returns a service without data; call Restore to load the
// cache. signOut, when non-nil, is called by SignOut to drop credentials.
func NewService(cfg ingest.Config, c *cache.Cache, signOut func() error) *Service {
	return &Service{cfg: cfg, cache: c, signOut: signOut, mode: model.ModeRegroup}
}

// Connect sets the mailbox that RunIngestion reads from.
func (s *Service) Connect(lister ingest.Lister, getter ingest.Getter) {
	in := ingest.NewIngestor(s.cfg, lister, getter)
	s.mu.Lock()
	s.ingestor = in
	s.mu.Unlock()
}

func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestor != nil
}

// Restore loads the aggregate and display settings from the cache.
func (s *Service) Restore(ctx context.Context) {
	senders := s.cache.Senders(ctx)
	total := s.cache.Total(ctx)
	cutoff := s.cache.Cutoff(ctx)
	mode := s.cache.Mode(ctx)

	s.mu.Lock()
	s.senders, s.total, s.cutoff, s.mode = senders, total, cutoff, mode
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"senders": len(senders),
		"total":   total,
		"cutoff":  cutoff,
		"mode":    mode,
	}).Debug("cache_restored")
}

// RunIngestion lists and fetches the configured messages, replaces the
// current aggregate and persists it. On failure the previous aggregate and
// cache are left as they were. Only one run may be in flight.
func (s *Service) RunIngestion(ctx context.Context, maxResults int64, onProgress func(model.Progress)) ([]model.Sender, error) {
	s.mu.Lock()
	in := s.ingestor
	s.mu.Unlock()
	if in == nil {
		return nil, ErrNotConnected
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrIngestionInProgress
	}
	defer s.running.Store(false)

	s.setProgress(model.Progress{})
	defer s.setProgress(model.Progress{})

	senders, err := in.Run(ctx, maxResults, func(p model.Progress) {
		s.setProgress(p)
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	total := aggregate.Total(senders)
	s.mu.Lock()
	s.senders = senders
	s.total = total
	s.mu.Unlock()

	s.cache.SaveSenders(ctx, senders)
	s.cache.SaveTotal(ctx, total)
	return senders, nil
}

func (s *Service) setProgress(p model.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

// GroupForDisplay groups the current aggregate with the stored cutoff and
// mode.
func (s *Service) GroupForDisplay() []model.GroupedEntry {
	s.mu.Lock()
	senders, cutoff, mode := s.senders, s.cutoff, s.mode
	s.mu.Unlock()
	return treemap.Group(senders, cutoff, mode)
}

// SetCutoff clamps requested to [0, largest sender size], stores and
// persists it, and returns the value applied.
func (s *Service) SetCutoff(ctx context.Context, requested int) int {
	s.mu.Lock()
	cutoff := treemap.ClampCutoff(s.senders, requested)
	s.cutoff = cutoff
	s.mu.Unlock()

	s.cache.SaveCutoff(ctx, cutoff)
	return cutoff
}

func (s *Service) SetMode(ctx context.Context, mode model.Mode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.cache.SaveMode(ctx, mode)
}

// SignOut disconnects the mailbox and forgets the aggregate and its total.
// The cutoff and mode are kept.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.ingestor = nil
	s.senders = nil
	s.total = 0
	s.mu.Unlock()

	s.cache.Clear(ctx)
	if s.signOut != nil {
		if err := s.signOut(); err != nil {
			return fmt.Errorf("sign out: %w", err)
		}
	}
	log.Info("signed_out")
	return nil
}

func (s *Service) Senders() []model.Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.senders
}

// HasData reports whether an aggregate is loaded, even an empty one from a
// successful run.
func (s *Service) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.senders != nil
}

func (s *Service) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Service) Cutoff() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cutoff
}

func (s *Service) MaxCutoff() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return treemap.MaxSize(s.senders)
}

func (s *Service) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Service) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Service) Running() bool {
	return s.running.Load()
}
