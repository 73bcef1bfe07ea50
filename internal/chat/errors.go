package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrAPIFailure indicates the generative API call failed (network, server, or an unusable response).
	ErrAPIFailure = errors.New("generative api failure")
	// ErrQuotaExceeded indicates the API rejected the call for rate or quota reasons.
	ErrQuotaExceeded = fmt.Errorf("%w: quota exceeded", ErrAPIFailure)
	// ErrContentRejected indicates the API refused the prompt or blocked the reply.
	ErrContentRejected = errors.New("content rejected by model")
)
