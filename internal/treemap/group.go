// Package treemap turns a flat sender-frequency list into treemap cells.
package treemap

import (
	"fmt"
	"sort"

	"sendermap/internal/model"
)

// OthersID is the metadata ID of the synthetic entry that collects the
// senders below the cutoff.
const OthersID = "__others__"

// Group sorts data by size and applies the small-sender cutoff. Senders
// with Size < cutoff are merged into one "Others" entry (ModeRegroup) or
// dropped (ModeHide); a cutoff <= 0 keeps everyone. Entries with a
// non-positive size are ignored. Group does not modify data.
func Group(data []model.Sender, cutoff int, mode model.Mode) []model.GroupedEntry {
	valid := make([]model.Sender, 0, len(data))
	for _, s := range data {
		if s.Size > 0 {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return []model.GroupedEntry{}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Size > valid[j].Size })

	if cutoff <= 0 {
		return emit(valid)
	}

	var big, small []model.Sender
	for _, s := range valid {
		if s.Size >= cutoff {
			big = append(big, s)
		} else {
			small = append(small, s)
		}
	}
	out := emit(big)
	if mode == model.ModeHide || len(small) == 0 {
		return out
	}

	sum := 0
	for _, s := range small {
		sum += s.Size
	}
	return append(out, model.GroupedEntry{
		Key:   fmt.Sprintf("Others (%d senders)", len(small)),
		Value: max(1, sum),
		Metadata: model.GroupMetadata{
			ID:             OthersID,
			IsOthers:       true,
			GroupedSenders: small,
			Order:          len(out),
		},
	})
}

func emit(senders []model.Sender) []model.GroupedEntry {
	out := make([]model.GroupedEntry, 0, len(senders)+1)
	for i, s := range senders {
		key := s.Name
		if key == "" {
			key = s.ID
		}
		out = append(out, model.GroupedEntry{
			Key:      key,
			Value:    max(1, s.Size),
			Metadata: model.GroupMetadata{ID: s.ID, Order: i},
		})
	}
	return out
}

// MaxSize is the largest sender size in data, or 0.
func MaxSize(data []model.Sender) int {
	m := 0
	for _, s := range data {
		m = max(m, s.Size)
	}
	return m
}

// ClampCutoff limits a requested cutoff to [0, MaxSize(data)].
func ClampCutoff(data []model.Sender, requested int) int {
	return max(0, min(requested, MaxSize(data)))
}
