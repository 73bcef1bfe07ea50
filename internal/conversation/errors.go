package conversation

import "errors"

var (
	// ErrUnknownChat indicates an append for a chat that was never created.
	ErrUnknownChat = errors.New("unknown chat")
	// ErrEmptyTurn indicates a turn without any valid parts.
	ErrEmptyTurn = errors.New("turn has no parts")
	// ErrTooManyMedia indicates the newest turn alone exceeds the per-request media limit.
	ErrTooManyMedia = errors.New("too many media parts in one message")
)
