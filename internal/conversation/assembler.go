package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaPolicy selects which historical media parts are dropped when a request
// would exceed the per-request media limit.
type MediaPolicy string

const (
	// MediaPolicyDropOldest drops historical media oldest-first until the request fits.
	MediaPolicyDropOldest MediaPolicy = "drop_oldest"
	// MediaPolicyDropHistory drops every historical media part once the limit is exceeded.
	MediaPolicyDropHistory MediaPolicy = "drop_history"
)

const (
	// DefaultMaxMediaParts bounds inline media per generate request.
	DefaultMaxMediaParts = 16
)

// AssemblerOptions configures request assembly.
type AssemblerOptions struct {
	MaxMediaParts int
	Policy        MediaPolicy
	// MaxHistoryTurns keeps only the newest N historical turns. Zero keeps everything.
	MaxHistoryTurns int
}

// Assembly is the ordered request content plus the new user turn to append
// after a successful reply.
type Assembly struct {
	Contents     []Turn
	UserTurn     Turn
	DroppedMedia int
}

// Assembler builds model requests from a session history and a new user input.
type Assembler struct {
	opts AssemblerOptions
	now  func() time.Time
}

// NewAssembler creates an Assembler, filling defaults for unset options.
func NewAssembler(opts AssemblerOptions) *Assembler {
	if opts.MaxMediaParts <= 0 {
		opts.MaxMediaParts = DefaultMaxMediaParts
	}
	switch opts.Policy {
	case MediaPolicyDropOldest, MediaPolicyDropHistory:
	default:
		opts.Policy = MediaPolicyDropOldest
	}
	if opts.MaxHistoryTurns < 0 {
		opts.MaxHistoryTurns = 0
	}
	return &Assembler{
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Options returns the effective options.
func (a *Assembler) Options() AssemblerOptions {
	return a.opts
}

// Assemble returns history (oldest first) followed by the new user turn.
// The history slice is not modified.
func (a *Assembler) Assemble(history []Turn, newParts []Part) (Assembly, error) {
	parts := make([]Part, 0, len(newParts))
	for _, p := range newParts {
		if p.Valid() {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Assembly{}, ErrEmptyTurn
	}
	userTurn := Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Parts:     parts,
		CreatedAt: a.now(),
	}
	newMedia := userTurn.MediaCount()
	if newMedia > a.opts.MaxMediaParts {
		return Assembly{}, fmt.Errorf("%w: %d > %d", ErrTooManyMedia, newMedia, a.opts.MaxMediaParts)
	}

	trimmed := a.trimHistory(history)
	contents := make([]Turn, 0, len(trimmed)+1)
	historyMedia := 0
	for _, turn := range trimmed {
		contents = append(contents, turn.clone())
		historyMedia += turn.MediaCount()
	}

	dropped := 0
	excess := historyMedia + newMedia - a.opts.MaxMediaParts
	if excess > 0 {
		if a.opts.Policy == MediaPolicyDropHistory {
			excess = historyMedia
		}
		contents, dropped = dropMedia(contents, excess)
	}
	contents = append(contents, userTurn)
	return Assembly{
		Contents:     contents,
		UserTurn:     userTurn.clone(),
		DroppedMedia: dropped,
	}, nil
}

// trimHistory keeps the newest MaxHistoryTurns turns and makes sure the kept
// window starts with a user turn.
func (a *Assembler) trimHistory(history []Turn) []Turn {
	if a.opts.MaxHistoryTurns == 0 || len(history) <= a.opts.MaxHistoryTurns {
		return history
	}
	kept := history[len(history)-a.opts.MaxHistoryTurns:]
	for len(kept) > 0 && kept[0].Role != RoleUser {
		kept = kept[1:]
	}
	return kept
}

// dropMedia removes up to n media parts walking turns oldest-first. A turn left
// without parts gets a placeholder so roles keep alternating.
func dropMedia(turns []Turn, n int) ([]Turn, int) {
	dropped := 0
	for i := range turns {
		if dropped >= n {
			break
		}
		if turns[i].MediaCount() == 0 {
			continue
		}
		kept := make([]Part, 0, len(turns[i].Parts))
		var removed []MediaKind
		for _, p := range turns[i].Parts {
			if p.IsMedia() && dropped < n {
				dropped++
				removed = append(removed, p.MediaKind)
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			kept = append(kept, TextPart(omittedPlaceholder(removed)))
		}
		turns[i].Parts = kept
	}
	return turns, dropped
}

func omittedPlaceholder(kinds []MediaKind) string {
	seen := map[MediaKind]bool{}
	labels := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true
		labels = append(labels, "["+string(kind)+" omitted]")
	}
	return strings.Join(labels, " ")
}
