package tui

import (
	"sendermap/internal/gmail"
	"sendermap/internal/model"
)

// Async message types for Bubble Tea commands.

type authURLMsg string

type connectedMsg struct {
	client *gmail.Client
	err    error
}

type progressMsg model.Progress

type ingestDoneMsg struct {
	senders []model.Sender
	err     error
}

type signedOutMsg struct {
	err error
}

type statusMsg string
