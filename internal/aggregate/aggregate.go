// Package aggregate folds fetched message records into per-sender counts.
package aggregate

import (
	"sendermap/internal/model"
	"sendermap/internal/util"
)

// Tally is a frequency map keyed by sender identity that remembers the
// order in which senders were first seen. It is not safe for concurrent
// use; the ingestion driver owns it for the duration of a run.
type Tally struct {
	stats map[string]*model.SenderStat
	order []string
}

func NewTally() *Tally {
	return &Tally{stats: make(map[string]*model.SenderStat)}
}

// Add counts rec towards its sender. Records without a From value are
// ignored. It reports whether the record was counted.
func (t *Tally) Add(rec model.MessageRecord) bool {
	return t.AddFrom(rec.From)
}

// AddFrom counts one message with the given raw From header.
func (t *Tally) AddFrom(from string) bool {
	if from == "" {
		return false
	}
	s := util.ParseSender(from)
	st, ok := t.stats[s.Address]
	if !ok {
		st = &model.SenderStat{}
		t.stats[s.Address] = st
		t.order = append(t.order, s.Address)
	}
	st.Count++
	st.Domain = s.Domain
	return true
}

func (t *Tally) Len() int { return len(t.order) }

// Stats returns a copy of the frequency map.
func (t *Tally) Stats() map[string]model.SenderStat {
	out := make(map[string]model.SenderStat, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}

// Senders converts the tally into an aggregate result in first-seen order.
func (t *Tally) Senders() []model.Sender {
	out := make([]model.Sender, 0, len(t.order))
	for _, id := range t.order {
		st := t.stats[id]
		out = append(out, model.Sender{ID: id, Name: id, Size: st.Count, Domain: st.Domain})
	}
	return out
}

// Fold returns senders with rec counted in. The input slice is not
// modified.
func Fold(senders []model.Sender, rec model.MessageRecord) []model.Sender {
	out := make([]model.Sender, len(senders), len(senders)+1)
	copy(out, senders)
	if rec.From == "" {
		return out
	}
	s := util.ParseSender(rec.From)
	for i := range out {
		if out[i].ID == s.Address {
			out[i].Size++
			out[i].Domain = s.Domain
			return out
		}
	}
	return append(out, model.Sender{ID: s.Address, Name: s.Address, Size: 1, Domain: s.Domain})
}

// FromHeaders builds the SenderStat map for a sequence of raw From values.
func FromHeaders(froms []string) map[string]model.SenderStat {
	t := NewTally()
	for _, f := range froms {
		t.AddFrom(f)
	}
	return t.Stats()
}

// Total sums the sizes of all senders.
func Total(senders []model.Sender) int {
	n := 0
	for _, s := range senders {
		n += s.Size
	}
	return n
}
