package conversation

import (
	"errors"
	"fmt"
	"testing"
)

func imagePart(label string) Part {
	return MediaPart(MediaImage, []byte(label), "image/jpeg")
}

// imageHistory builds n exchanges whose user turns each carry one image.
func imageHistory(n int, withCaption bool) []Turn {
	turns := make([]Turn, 0, 2*n)
	for i := 0; i < n; i++ {
		parts := []Part{imagePart(fmt.Sprintf("img-%d", i))}
		if withCaption {
			parts = append([]Part{TextPart(fmt.Sprintf("caption %d", i))}, parts...)
		}
		turns = append(turns,
			Turn{Role: RoleUser, Parts: parts},
			Turn{Role: RoleModel, Parts: []Part{TextPart("nice")}},
		)
	}
	return turns
}

func collectImages(turns []Turn) []string {
	var out []string
	for _, turn := range turns {
		for _, p := range turn.Parts {
			if p.IsMedia() {
				out = append(out, string(p.Data))
			}
		}
	}
	return out
}

func TestAssembleOrdersHistoryBeforeNewTurn(t *testing.T) {
	t.Parallel()

	history := []Turn{
		{Role: RoleUser, Parts: []Part{TextPart("hi")}},
		{Role: RoleModel, Parts: []Part{TextPart("hello")}},
	}
	asm := NewAssembler(AssemblerOptions{})
	got, err := asm.Assemble(history, []Part{TextPart("how are you")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got.Contents))
	}
	wantRoles := []Role{RoleUser, RoleModel, RoleUser}
	for i, role := range wantRoles {
		if got.Contents[i].Role != role {
			t.Fatalf("turn %d: expected role %s, got %s", i, role, got.Contents[i].Role)
		}
	}
	if got.UserTurn.Role != RoleUser || got.UserTurn.Text() != "how are you" {
		t.Fatalf("unexpected user turn: %+v", got.UserTurn)
	}
	if got.UserTurn.ID == "" || got.UserTurn.ID != got.Contents[2].ID {
		t.Fatalf("expected the user turn to be the last content turn")
	}
}

func TestAssembleDropsOldestMediaFirst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		oldImages   int
		limit       int
		wantImages  []string
		wantDropped int
	}{
		{
			name:        "one over the limit drops the very first image",
			oldImages:   5,
			limit:       5,
			wantImages:  []string{"img-1", "img-2", "img-3", "img-4", "new"},
			wantDropped: 1,
		},
		{
			name:        "six old images plus one new",
			oldImages:   6,
			limit:       5,
			wantImages:  []string{"img-2", "img-3", "img-4", "img-5", "new"},
			wantDropped: 2,
		},
		{
			name:        "within the limit",
			oldImages:   3,
			limit:       5,
			wantImages:  []string{"img-0", "img-1", "img-2", "new"},
			wantDropped: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			history := imageHistory(tt.oldImages, true)
			asm := NewAssembler(AssemblerOptions{MaxMediaParts: tt.limit})
			got, err := asm.Assemble(history, []Part{imagePart("new")})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			images := collectImages(got.Contents)
			if fmt.Sprint(images) != fmt.Sprint(tt.wantImages) {
				t.Fatalf("expected images %v, got %v", tt.wantImages, images)
			}
			if got.DroppedMedia != tt.wantDropped {
				t.Fatalf("expected %d dropped, got %d", tt.wantDropped, got.DroppedMedia)
			}
			if len(got.Contents) != len(history)+1 {
				t.Fatalf("text and turns must survive media dropping")
			}
			if got.Contents[0].Text() != "caption 0" {
				t.Fatalf("captions must not be dropped, got %q", got.Contents[0].Text())
			}
		})
	}
}

func TestAssembleDoesNotMutateHistory(t *testing.T) {
	t.Parallel()

	history := imageHistory(4, false)
	asm := NewAssembler(AssemblerOptions{MaxMediaParts: 2})
	if _, err := asm.Assemble(history, []Part{TextPart("hi")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := collectImages(history); len(got) != 4 {
		t.Fatalf("history was modified: %v", got)
	}
}

func TestAssemblePlaceholderKeepsTurnsNonEmpty(t *testing.T) {
	t.Parallel()

	asm := NewAssembler(AssemblerOptions{MaxMediaParts: 1})
	got, err := asm.Assemble(imageHistory(2, false), []Part{imagePart("new")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, turn := range got.Contents {
		if len(turn.Parts) == 0 {
			t.Fatalf("turn %d is empty", i)
		}
	}
	if got.Contents[0].Text() != "[image omitted]" {
		t.Fatalf("expected placeholder, got %q", got.Contents[0].Text())
	}
}

func TestAssembleDropHistoryPolicy(t *testing.T) {
	t.Parallel()

	asm := NewAssembler(AssemblerOptions{MaxMediaParts: 4, Policy: MediaPolicyDropHistory})
	got, err := asm.Assemble(imageHistory(4, true), []Part{imagePart("new")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images := collectImages(got.Contents); fmt.Sprint(images) != "[new]" {
		t.Fatalf("expected only the new image, got %v", images)
	}
}

func TestAssembleNewTurnOverLimit(t *testing.T) {
	t.Parallel()

	asm := NewAssembler(AssemblerOptions{MaxMediaParts: 2})
	_, err := asm.Assemble(nil, []Part{imagePart("a"), imagePart("b"), imagePart("c")})
	if !errors.Is(err, ErrTooManyMedia) {
		t.Fatalf("expected ErrTooManyMedia, got %v", err)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	asm := NewAssembler(AssemblerOptions{})
	_, err := asm.Assemble(nil, []Part{TextPart("   "), MediaPart(MediaImage, nil, "image/png")})
	if !errors.Is(err, ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}
}

func TestAssembleHistoryWindowStartsWithUser(t *testing.T) {
	t.Parallel()

	asm := NewAssembler(AssemblerOptions{MaxHistoryTurns: 3})
	history := imageHistory(3, true)
	got, err := asm.Assemble(history, []Part{TextPart("next")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 2 history turns plus the new turn, got %d", len(got.Contents))
	}
	if got.Contents[0].Role != RoleUser {
		t.Fatalf("history window must start with a user turn")
	}
}
