package media

import "errors"

var (
	// ErrUnsupportedMediaKind indicates an attachment kind the relay cannot forward.
	ErrUnsupportedMediaKind = errors.New("unsupported media kind")
	// ErrResolverUnavailable indicates no attachment resolver is configured.
	ErrResolverUnavailable = errors.New("attachment resolver unavailable")
	// ErrAssetTooLarge indicates the payload exceeds the configured max asset size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrEmptyPayload indicates the resolved attachment had no bytes.
	ErrEmptyPayload = errors.New("media payload is empty")
)
