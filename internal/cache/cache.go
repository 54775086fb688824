// Package cache persists the sender aggregate and display settings between
// runs. Reads never fail: anything missing or malformed loads as its
// default. Writes are best-effort and only logged on failure.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	log "github.com/sirupsen/logrus"

	"sendermap/internal/model"
)

const (
	KeySenders = "treemapData"
	KeyTotal   = "treemapTotalUnread"
	KeyCutoff  = "treemapGroupThreshold"
	KeyMode    = "treemapGroupMode"
)

// KV is the string key-value substrate the cache is stored in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type Cache struct {
	kv KV
}

func New(kv KV) *Cache {
	return &Cache{kv: kv}
}

func (c *Cache) load(ctx context.Context, key string) (string, bool) {
	val, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("cache_read_failed")
		return "", false
	}
	return val, ok
}

func (c *Cache) save(ctx context.Context, key, value string) {
	if err := c.kv.Set(ctx, key, value); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("cache_write_failed")
	}
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.kv.Remove(ctx, key); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("cache_write_failed")
	}
}

// Senders returns the cached aggregate, or nil when nothing usable is
// stored. Elements whose size is not a positive integer are dropped.
func (c *Cache) Senders(ctx context.Context) []model.Sender {
	raw, ok := c.load(ctx, KeySenders)
	if !ok {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		log.WithError(err).Debug("cache_senders_malformed")
		return nil
	}

	out := make([]model.Sender, 0, len(elems))
	for _, e := range elems {
		if s, ok := decodeSender(e); ok {
			out = append(out, s)
		}
	}
	if dropped := len(elems) - len(out); dropped > 0 {
		log.WithFields(log.Fields{"dropped": dropped, "kept": len(out)}).Debug("cache_senders_filtered")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeSender(raw json.RawMessage) (model.Sender, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.Sender{}, false
	}
	size, ok := parseSize(fields["size"])
	if !ok {
		return model.Sender{}, false
	}

	var named struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(raw, &named); err != nil {
		return model.Sender{}, false
	}
	return model.Sender{ID: named.ID, Name: named.Name, Size: size, Domain: named.Domain}, true
}

// parseSize accepts only a bare JSON number that is a finite positive
// integer. Quoted numbers are rejected.
func parseSize(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func (c *Cache) SaveSenders(ctx context.Context, senders []model.Sender) {
	if senders == nil {
		senders = []model.Sender{}
	}
	b, err := json.Marshal(senders)
	if err != nil {
		log.WithError(err).Warn("cache_write_failed")
		return
	}
	c.save(ctx, KeySenders, string(b))
}

func (c *Cache) Total(ctx context.Context) int {
	return c.loadInt(ctx, KeyTotal)
}

func (c *Cache) SaveTotal(ctx context.Context, total int) {
	c.save(ctx, KeyTotal, strconv.Itoa(total))
}

func (c *Cache) Cutoff(ctx context.Context) int {
	return max(0, c.loadInt(ctx, KeyCutoff))
}

func (c *Cache) SaveCutoff(ctx context.Context, cutoff int) {
	c.save(ctx, KeyCutoff, strconv.Itoa(cutoff))
}

func (c *Cache) Mode(ctx context.Context) model.Mode {
	raw, _ := c.load(ctx, KeyMode)
	return model.ParseMode(raw)
}

func (c *Cache) SaveMode(ctx context.Context, mode model.Mode) {
	c.save(ctx, KeyMode, string(mode))
}

// Clear forgets the aggregate and its total. Display settings are kept.
func (c *Cache) Clear(ctx context.Context) {
	c.remove(ctx, KeySenders)
	c.remove(ctx, KeyTotal)
}

func (c *Cache) loadInt(ctx context.Context, key string) int {
	raw, ok := c.load(ctx, key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw}).Debug("cache_value_malformed")
		return 0
	}
	return n
}
