package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/omnirelay/omni/internal/conversation"
)

// DefaultGoogleModel is a Gemini model that can answer with both text and images.
const DefaultGoogleModel = "gemini-2.0-flash-exp-image-generation"

// promptAcknowledgement is the model turn that follows a prompt sent as a
// leading user turn.
const promptAcknowledgement = "Understood."

// GoogleOptions configures the Gemini provider.
type GoogleOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// SystemInstruction sends the system prompt as a developer instruction.
	// Image-generation models reject those, so by default the prompt opens
	// the contents as a user turn followed by a model acknowledgement.
	SystemInstruction bool
}

// GoogleProvider generates replies with the Gemini API.
type GoogleProvider struct {
	client            *genai.Client
	model             string
	timeout           time.Duration
	systemInstruction bool
	logger            *slog.Logger
}

// NewGoogleProvider creates a Gemini-backed provider.
func NewGoogleProvider(ctx context.Context, log *slog.Logger, opts GoogleOptions) (*GoogleProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("google provider: api key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultGoogleModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("google provider: %w", err)
	}
	return &GoogleProvider{
		client:            client,
		model:             opts.Model,
		timeout:           opts.Timeout,
		systemInstruction: opts.SystemInstruction,
		logger:            log.With(slog.String("component", "chat"), slog.String("provider", "google")),
	}, nil
}

// Generate sends the assembled turns and returns the classified reply.
func (p *GoogleProvider) Generate(ctx context.Context, req Request) (Reply, error) {
	contents := toGenaiContents(req.Contents)
	if len(contents) == 0 {
		return Reply{}, fmt.Errorf("%w: empty request", ErrAPIFailure)
	}
	config := &genai.GenerateContentConfig{
		Temperature:        req.Temperature,
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		if p.systemInstruction {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(prompt)}}
		} else {
			contents = append(promptPrefix(prompt), contents...)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	resp, err := p.client.Models.GenerateContent(callCtx, p.model, contents, config)
	if err != nil {
		classified := classifyError(err)
		if p.logger != nil {
			p.logger.Warn("generate content failed",
				slog.String("model", p.model),
				slog.Duration("elapsed", time.Since(started)),
				slog.Any("error", err),
			)
		}
		return Reply{}, classified
	}
	reply, err := replyFromResponse(resp)
	if err != nil {
		return Reply{}, err
	}
	reply.Model = p.model
	if p.logger != nil {
		p.logger.Debug("generate content",
			slog.String("model", p.model),
			slog.Int("segments", len(reply.Segments)),
			slog.Duration("elapsed", time.Since(started)),
		)
	}
	return reply, nil
}

// promptPrefix opens a request with the prompt as a user turn and the
// model's acknowledgement. It is never stored in the session history.
func promptPrefix(prompt string) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
		genai.NewContentFromText(promptAcknowledgement, genai.RoleModel),
	}
}

func toGenaiContents(turns []conversation.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		c := &genai.Content{Role: string(t.Role)}
		for _, part := range t.Parts {
			switch part.Kind {
			case conversation.PartText:
				if part.Text != "" {
					c.Parts = append(c.Parts, genai.NewPartFromText(part.Text))
				}
			case conversation.PartMedia:
				if len(part.Data) > 0 {
					c.Parts = append(c.Parts, genai.NewPartFromBytes(part.Data, part.Mime))
				}
			}
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	return contents
}

// replyFromResponse maps the first candidate into ordered segments, failing
// with ErrContentRejected when the prompt or the candidate was blocked.
func replyFromResponse(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil {
		return Reply{}, fmt.Errorf("%w: nil response", ErrAPIFailure)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return Reply{}, fmt.Errorf("%w: prompt blocked (%s)", ErrContentRejected, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return Reply{}, fmt.Errorf("%w: no candidates", ErrAPIFailure)
	}
	cand := resp.Candidates[0]
	if rejectedFinish(cand.FinishReason) {
		return Reply{}, fmt.Errorf("%w: finish reason %s", ErrContentRejected, cand.FinishReason)
	}
	var reply Reply
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				reply.Segments = append(reply.Segments, Segment{Kind: SegmentText, Text: part.Text})
			}
			if blob := part.InlineData; blob != nil && len(blob.Data) > 0 {
				kind := SegmentFile
				if strings.HasPrefix(strings.ToLower(blob.MIMEType), "image/") {
					kind = SegmentImage
				}
				reply.Segments = append(reply.Segments, Segment{Kind: kind, Data: blob.Data, Mime: blob.MIMEType})
			}
		}
	}
	if reply.IsEmpty() {
		return Reply{}, fmt.Errorf("%w: empty reply (finish reason %q)", ErrAPIFailure, cand.FinishReason)
	}
	return reply, nil
}

func rejectedFinish(reason genai.FinishReason) bool {
	switch reason {
	case genai.FinishReasonSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII,
		genai.FinishReasonImageSafety:
		return true
	default:
		return false
	}
}

// classifyError maps a transport or API error onto the package sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d %s: %s", ErrAPIFailure, apiErr.Code, apiErr.Status, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out: %w", ErrAPIFailure, err)
	}
	return fmt.Errorf("%w: %w", ErrAPIFailure, err)
}
