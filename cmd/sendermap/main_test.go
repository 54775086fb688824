package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"sendermap/internal/model"
	"sendermap/internal/treemap"
)

func TestPrintGrouping(t *testing.T) {
	senders := []model.Sender{
		{ID: "c@z.com", Name: "c@z.com", Size: 1},
		{ID: "a@x.com", Name: "a@x.com", Size: 10},
		{ID: "b@y.com", Name: "b@y.com", Size: 3},
	}

	var buf bytes.Buffer
	printGrouping(&buf, treemap.Group(senders, 5, model.ModeRegroup), 14, 5, model.ModeRegroup)
	out := buf.String()
	assert.Contains(t, out, "14 unread emails")
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "Others (2 senders)")
	assert.Contains(t, out, "b@y.com")

	buf.Reset()
	printGrouping(&buf, nil, 0, 0, model.ModeRegroup)
	assert.Contains(t, buf.String(), "No unread emails")

	buf.Reset()
	printGrouping(&buf, treemap.Group(senders, 11, model.ModeHide), 14, 11, model.ModeHide)
	assert.Contains(t, buf.String(), "Every sender is below the cutoff")
}
