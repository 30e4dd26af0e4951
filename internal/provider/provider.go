package provider

import (
	"context"

	"aibook/internal/model"
)

// ActionProvider is the capability boundary between the simulation and
// whatever generates agent behavior. Implementations must never panic or
// surface transport errors to callers: a failed call returns the documented
// neutral fallback instead. GenerateImage is the one exception; image
// failures are part of the approval flow and belong to the caller.
//
// Decisions may carry stale or invalid targets. Callers revalidate against
// live state before mutating anything.
type ActionProvider interface {
	Name() string

	DecideNextAction(ctx context.Context, ch model.Character, snap model.Snapshot) model.Decision

	GeneratePost(ctx context.Context, ch model.Character, snap model.Snapshot) string
	GenerateImagePost(ctx context.Context, ch model.Character) model.ImagePost
	// GenerateComment frames a reply when parent is non-nil.
	GenerateComment(ctx context.Context, ch model.Character, post model.Post, snap model.Snapshot, parent *model.Comment) string
	GenerateReaction(ctx context.Context, ch model.Character, post model.Post) model.ReactionKind
	GenerateGroupDetails(ctx context.Context, ch model.Character) model.GroupDetails
	GenerateImage(ctx context.Context, prompt string) (string, error)

	Translate(ctx context.Context, text string) string
	// AnalyzeSentiment reports whether the message is hostile toward the character.
	AnalyzeSentiment(ctx context.Context, ch model.Character, message string) bool

	// ChatStream produces the character's streamed reply to a new message
	// given the conversation so far. The stream ends with io.EOF.
	ChatStream(ctx context.Context, ch model.Character, history []model.ChatMessage, message string) Stream
}

// Stream is an incremental sequence of text fragments. Recv blocks for the
// next fragment and returns io.EOF when the reply is complete. A stream is
// finite and not restartable.
type Stream interface {
	Recv() (string, error)
}

// Neutral fallback values shared by implementations.
const (
	FallbackReasoning = "is feeling confused due to a system error."
	FallbackText      = "(An error occurred, I can't think right now.)"
)

// IdleDecision is the neutral decision used when a provider cannot produce
// a usable one.
func IdleDecision() model.Decision {
	return model.Decision{Action: model.ActionIdle, Reasoning: FallbackReasoning}
}
