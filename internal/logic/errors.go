package logic

import "errors"

var (
	ErrEmptyPool         = errors.New("no names remaining")
	ErrDrawBusy          = errors.New("draw in progress")
	ErrInvalidGroupCount = errors.New("invalid group count")
)
