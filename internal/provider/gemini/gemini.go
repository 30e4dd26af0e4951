// Package gemini is the network-backed action provider built on the Gemini
// API. Every call degrades to a neutral fallback on failure; the simulation
// never sees a transport error except from image generation, which the
// approval flow handles itself.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"aibook/internal/logging"
	"aibook/internal/metrics"
	"aibook/internal/model"
	"aibook/internal/provider"
)

// Options configures the provider.
type Options struct {
	APIKey     string
	TextModel  string
	ImageModel string
	RPS        float64
	Burst      int
}

// Provider implements provider.ActionProvider against the Gemini API.
type Provider struct {
	client     *genai.Client
	textModel  string
	imageModel string
	limiter    *rate.Limiter

	maxAttempts int
	baseBackoff time.Duration
}

// New builds a Gemini-backed provider.
func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, err
	}
	if opts.TextModel == "" {
		opts.TextModel = "gemini-2.5-flash"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "imagen-3.0-generate-002"
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 1
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 4
	}
	return &Provider{
		client:      client,
		textModel:   opts.TextModel,
		imageModel:  opts.ImageModel,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}, nil
}

func (p *Provider) Name() string { return "gemini" }

func systemContent(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

func noThinking() *genai.ThinkingConfig {
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
}

// respText pulls the first candidate's text out of a response.
func respText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return ""
	}
	return c.Content.Parts[0].Text
}

func retryable(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit") ||
		strings.Contains(s, "exhausted") || strings.Contains(s, "unavailable") ||
		strings.Contains(s, "500") || strings.Contains(s, "503")
}

// generate runs one rate-limited text generation with retry on transient
// errors.
func (p *Provider) generate(ctx context.Context, kind, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	metrics.IncProviderCall(p.Name(), kind)
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	backoff := p.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		resp, err := p.client.Models.GenerateContent(ctx, p.textModel, genai.Text(prompt), cfg)
		if err == nil {
			if t := respText(resp); t != "" {
				return t, nil
			}
			lastErr = errors.New("empty response")
		} else {
			lastErr = err
			if !retryable(err) {
				break
			}
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}
	metrics.IncProviderError(p.Name(), kind)
	return "", fmt.Errorf("gemini %s failed after %d attempts: %w", kind, p.maxAttempts, lastErr)
}

// generateSafe returns fallback instead of an error.
func (p *Provider) generateSafe(ctx context.Context, kind, prompt, system, fallback string) string {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		ThinkingConfig:    noThinking(),
	}
	out, err := p.generate(ctx, kind, prompt, cfg)
	if err != nil {
		logging.Error("gemini_call_failed", map[string]any{"kind": kind, "error": err.Error()})
		return fallback
	}
	return strings.TrimSpace(out)
}

func (p *Provider) GeneratePost(ctx context.Context, ch model.Character, snap model.Snapshot) string {
	return p.generateSafe(ctx, "post", postPrompt(ch, snap),
		roleplaySystem(ch), provider.FallbackText)
}

func (p *Provider) GenerateImagePost(ctx context.Context, ch model.Character) model.ImagePost {
	var out model.ImagePost
	ok := p.generateJSON(ctx, "image_post", imagePostPrompt(ch), roleplaySystem(ch), imagePostSchema(), imagePostValidator, &out)
	if !ok {
		return model.ImagePost{Content: "Look at this!", Prompt: "a generic image"}
	}
	return out
}

func (p *Provider) GenerateComment(ctx context.Context, ch model.Character, post model.Post, snap model.Snapshot, parent *model.Comment) string {
	return p.generateSafe(ctx, "comment", commentPrompt(ch, post, snap, parent),
		roleplaySystem(ch), provider.FallbackText)
}

func (p *Provider) GenerateReaction(ctx context.Context, ch model.Character, post model.Post) model.ReactionKind {
	var out struct {
		Reaction model.ReactionKind `json:"reaction"`
	}
	ok := p.generateJSON(ctx, "reaction", reactionPrompt(ch, post), roleplaySystem(ch), reactionSchema(), reactionValidator, &out)
	if !ok || !model.ValidReaction(out.Reaction) {
		return model.ReactionLike
	}
	return out.Reaction
}

func (p *Provider) GenerateGroupDetails(ctx context.Context, ch model.Character) model.GroupDetails {
	var out model.GroupDetails
	ok := p.generateJSON(ctx, "group", groupPrompt(ch), roleplaySystem(ch), groupSchema(), groupValidator, &out)
	if !ok || out.Name == "" {
		return model.GroupDetails{Name: "General Club", Description: "A place to hang out."}
	}
	return out
}

// GenerateImage produces a data URL for the prompt. Errors propagate; the
// notification pipeline owns the failure path.
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	metrics.IncProviderCall(p.Name(), "image")
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.Models.GenerateImages(ctx, p.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
		AspectRatio:    "1:1",
	})
	if err != nil {
		metrics.IncProviderError(p.Name(), "image")
		return "", err
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		metrics.IncProviderError(p.Name(), "image")
		return "", errors.New("no image generated")
	}
	b64 := base64.StdEncoding.EncodeToString(resp.GeneratedImages[0].Image.ImageBytes)
	return "data:image/jpeg;base64," + b64, nil
}

func (p *Provider) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return p.generateSafe(ctx, "translate", translatePrompt(text),
		"You are a helpful and efficient translation assistant. Provide only the Arabic translation.", "")
}

func (p *Provider) AnalyzeSentiment(ctx context.Context, ch model.Character, message string) bool {
	out := p.generateSafe(ctx, "sentiment", sentimentPrompt(ch, message),
		`You are a sentiment analysis bot. You only return "true" or "false".`, "false")
	return strings.Contains(strings.ToLower(out), "true")
}
