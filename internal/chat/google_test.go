package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/omnirelay/omni/internal/conversation"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantQuota bool
	}{
		{name: "rate limited", err: genai.APIError{Code: 429, Message: "slow down"}, wantQuota: true},
		{name: "resource exhausted", err: fmt.Errorf("call: %w", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}), wantQuota: true},
		{name: "server error", err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}},
		{name: "network", err: errors.New("connection reset by peer")},
		{name: "deadline", err: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifyError(tt.err)
			if !errors.Is(got, ErrAPIFailure) {
				t.Fatalf("expected ErrAPIFailure, got %v", got)
			}
			if errors.Is(got, ErrQuotaExceeded) != tt.wantQuota {
				t.Fatalf("quota classification mismatch for %v", got)
			}
			if errors.Is(got, ErrContentRejected) {
				t.Fatalf("api errors are never content rejections: %v", got)
			}
		})
	}
	if classifyError(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestReplyFromResponseKeepsOrder(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{
				{Text: "thinking out loud", Thought: true},
				{Text: "Here is a cat:"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
				{Text: "and its sound"},
				{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: []byte{4}}},
			}},
		}},
	}
	reply, err := replyFromResponse(resp)
	require.NoError(t, err)
	require.Len(t, reply.Segments, 4)
	assert.Equal(t, Segment{Kind: SegmentText, Text: "Here is a cat:"}, reply.Segments[0])
	assert.Equal(t, SegmentImage, reply.Segments[1].Kind)
	assert.Equal(t, SegmentText, reply.Segments[2].Kind)
	assert.Equal(t, SegmentFile, reply.Segments[3].Kind)

	turn := reply.Turn()
	assert.Equal(t, conversation.RoleModel, turn.Role)
	assert.Equal(t, 2, turn.MediaCount())
	assert.Len(t, turn.Parts, 4)
}

func TestReplyFromResponseRejections(t *testing.T) {
	t.Parallel()

	blocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}
	_, err := replyFromResponse(blocked)
	require.ErrorIs(t, err, ErrContentRejected)

	for _, reason := range []genai.FinishReason{genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonImageSafety} {
		_, err = replyFromResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: reason}},
		})
		require.ErrorIs(t, err, ErrContentRejected, "reason %s", reason)
		require.NotErrorIs(t, err, ErrAPIFailure)
	}

	_, err = replyFromResponse(&genai.GenerateContentResponse{})
	require.ErrorIs(t, err, ErrAPIFailure)

	_, err = replyFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "  "}}},
		}},
	})
	require.ErrorIs(t, err, ErrAPIFailure)
}

func TestReplyTurnPlaceholderForFiles(t *testing.T) {
	t.Parallel()

	reply := Reply{Segments: []Segment{{Kind: SegmentFile, Mime: "application/pdf", Data: []byte("%PDF")}}}
	turn := reply.Turn()
	require.Len(t, turn.Parts, 1)
	assert.Equal(t, conversation.TextPart(attachmentOmitted), turn.Parts[0])
}

func TestToGenaiContentsSkipsEmpty(t *testing.T) {
	t.Parallel()

	contents := toGenaiContents([]conversation.Turn{
		{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi"), conversation.MediaPart(conversation.MediaImage, []byte{1}, "image/png")}},
		{Role: conversation.RoleModel},
	})
	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GoogleProvider {
	t.Helper()
	return newTestProviderWithOptions(t, handler, GoogleOptions{})
}

func newTestProviderWithOptions(t *testing.T, handler http.HandlerFunc, opts GoogleOptions) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.APIKey = "test-key"
	opts.Model = "test-model"
	opts.BaseURL = srv.URL
	opts.Timeout = 5 * time.Second
	provider, err := NewGoogleProvider(context.Background(), nil, opts)
	require.NoError(t, err)
	return provider
}

func TestGoogleProviderGenerate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/test-model:generateContent") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"},{"inlineData":{"mimeType":"image/png","data":%q}}]},"finishReason":"STOP"}]}`,
			base64.StdEncoding.EncodeToString([]byte{9, 9, 9}))
	})

	temp := float32(0.4)
	reply, err := provider.Generate(context.Background(), Request{
		Contents: []conversation.Turn{
			{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("draw a cat")}},
		},
		Temperature:  &temp,
		SystemPrompt: "be nice",
	})
	require.NoError(t, err)
	require.Len(t, reply.Segments, 2)
	assert.Equal(t, "hello", reply.Segments[0].Text)
	assert.Equal(t, []byte{9, 9, 9}, reply.Segments[1].Data)
	assert.Equal(t, "test-model", reply.Model)

	require.NotNil(t, body)
	assert.NotContains(t, body, "systemInstruction")
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3)
	assert.Equal(t, []string{"user", "model", "user"}, contentRoles(t, contents))
	assert.Equal(t, "be nice", firstText(t, contents[0]))
	assert.Equal(t, promptAcknowledgement, firstText(t, contents[1]))
	assert.Equal(t, "draw a cat", firstText(t, contents[2]))
}

func TestGoogleProviderSystemInstruction(t *testing.T) {
	t.Parallel()

	var body map[string]any
	provider := newTestProviderWithOptions(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}, GoogleOptions{SystemInstruction: true})

	_, err := provider.Generate(context.Background(), Request{
		Contents:     []conversation.Turn{{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi")}}},
		SystemPrompt: "be nice",
	})
	require.NoError(t, err)

	require.NotNil(t, body)
	instruction, ok := body["systemInstruction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "be nice", firstText(t, instruction))
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

func TestGoogleProviderNoPromptNoPrefix(t *testing.T) {
	t.Parallel()

	var body map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	})

	_, err := provider.Generate(context.Background(), Request{
		Contents: []conversation.Turn{{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi")}}},
	})
	require.NoError(t, err)
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
	assert.NotContains(t, body, "systemInstruction")
}

func contentRoles(t *testing.T, contents []any) []string {
	t.Helper()
	roles := make([]string, 0, len(contents))
	for _, raw := range contents {
		content, ok := raw.(map[string]any)
		require.True(t, ok)
		role, _ := content["role"].(string)
		roles = append(roles, role)
	}
	return roles
}

func firstText(t *testing.T, raw any) string {
	t.Helper()
	content, ok := raw.(map[string]any)
	require.True(t, ok)
	parts, ok := content["parts"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, parts)
	part, ok := parts[0].(map[string]any)
	require.True(t, ok)
	text, _ := part["text"].(string)
	return text
}

func TestGoogleProviderQuota(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := provider.Generate(context.Background(), Request{
		Contents: []conversation.Turn{{Role: conversation.RoleUser, Parts: []conversation.Part{conversation.TextPart("hi")}}},
	})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.ErrorIs(t, err, ErrAPIFailure)
}

func TestNewGoogleProviderRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewGoogleProvider(context.Background(), nil, GoogleOptions{})
	require.Error(t, err)
}
