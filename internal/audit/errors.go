package audit

import "errors"

var (
	ErrJournalClosed = errors.New("journal is closed")
	ErrQueueFull     = errors.New("journal queue is full")
)
