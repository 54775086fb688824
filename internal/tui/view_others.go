package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"sendermap/internal/model"
)

// senderItem wraps Sender for the Others detail list.
type senderItem struct {
	model.Sender
}

func (s senderItem) FilterValue() string { return s.ID }
func (s senderItem) Title() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
func (s senderItem) Description() string {
	return fmt.Sprintf("%d emails  %s", s.Size, s.Domain)
}

func sendersToItems(senders []model.Sender) []list.Item {
	items := make([]list.Item, len(senders))
	for i, s := range senders {
		items[i] = senderItem{s}
	}
	return items
}

// othersEntry returns the Others entry of a grouping, if any.
func othersEntry(entries []model.GroupedEntry) (model.GroupedEntry, bool) {
	for _, e := range entries {
		if e.Metadata.IsOthers {
			return e, true
		}
	}
	return model.GroupedEntry{}, false
}

func othersFooter() string {
	return footerStyle.Render("/: filter  esc: back  q: quit")
}
