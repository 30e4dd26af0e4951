package gemini

import (
	"context"

	"google.golang.org/genai"

	"aibook/internal/logging"
	"aibook/internal/metrics"
	"aibook/internal/model"
	"aibook/internal/provider"
)

// ChatStream replays the conversation history plus the new message and
// streams the model's reply. The provider holds no session state; the chat
// manager owns history and hands it over on every turn.
func (p *Provider) ChatStream(ctx context.Context, ch model.Character, history []model.ChatMessage, message string) provider.Stream {
	metrics.IncProviderCall(p.Name(), "chat")

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == model.RoleAgent {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: message}},
	})

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(chatSystem(ch)),
	}

	frags := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(frags)
		if err := p.limiter.Wait(ctx); err != nil {
			errc <- err
			return
		}
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.textModel, contents, cfg) {
			if err != nil {
				metrics.IncProviderError(p.Name(), "chat")
				logging.Error("gemini_chat_stream_failed", map[string]any{"character": ch.ID, "error": err.Error()})
				errc <- err
				return
			}
			if t := respText(resp); t != "" {
				select {
				case frags <- t:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}
	}()
	return provider.NewChanStream(frags, errc)
}
