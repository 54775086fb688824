package model

import (
	"errors"
	"strings"
)

// ErrThrottled is wrapped by fetch collaborators when the provider reports
// that the request-rate quota was exceeded.
var ErrThrottled = errors.New("throttled")

// MessageRef identifies one remote message as returned by a listing call.
type MessageRef struct {
	ID string
}

// MessageRecord is the result of fetching one MessageRef.
type MessageRecord struct {
	Ref  MessageRef
	From string // raw From header value
}

// SenderStat is the running frequency of one sender identity.
type SenderStat struct {
	Count  int
	Domain string
}

// Sender is one entry of an aggregate result. ID and Name both hold the
// sender identity; Size is the number of unread messages from it.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Domain string `json:"domain"`
}

// GroupedEntry is one cell of the treemap as produced by treemap.Group.
type GroupedEntry struct {
	Key      string
	Value    int
	Metadata GroupMetadata
}

type GroupMetadata struct {
	ID             string
	IsOthers       bool
	GroupedSenders []Sender // only set on the synthetic Others entry
	Order          int      // emission index, used for stable colours
}

// Progress is sent by the ingestor after every batch.
type Progress struct {
	Processed int
	Total     int
}

// Mode decides what happens to senders below the cutoff.
type Mode string

const (
	ModeRegroup Mode = "regroup"
	ModeHide    Mode = "hide"
)

// ParseMode returns the mode named by s, falling back to ModeRegroup.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHide:
		return ModeHide
	default:
		return ModeRegroup
	}
}

// Toggle flips between regroup and hide.
func (m Mode) Toggle() Mode {
	if m == ModeHide {
		return ModeRegroup
	}
	return ModeHide
}
