// Package sim runs the simulation session: the engine that applies user
// intents and agent turns to the world graph, the scheduler that paces agent
// turns, and the activity feed.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"aibook/internal/analytics"
	"aibook/internal/budget"
	"aibook/internal/chat"
	"aibook/internal/config"
	"aibook/internal/journal"
	"aibook/internal/logging"
	"aibook/internal/model"
	"aibook/internal/provider"
	"aibook/internal/store"
)

var (
	// ErrUnknownPost is returned for intents naming a post that does not exist.
	ErrUnknownPost = errors.New("unknown post")
	// ErrUnknownGroup is returned for intents naming a group that does not exist.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrUnknownNotification is returned when resolving a missing notification.
	ErrUnknownNotification = errors.New("unknown notification")
	// ErrAlreadyResolved is returned when resolving a notification twice.
	ErrAlreadyResolved = errors.New("notification already resolved")
	// ErrInvalidReaction is returned for a reaction kind outside the fixed set.
	ErrInvalidReaction = errors.New("invalid reaction kind")
	// ErrFallbackPinned is returned when switching back to the network
	// provider after the call ceiling was hit.
	ErrFallbackPinned = errors.New("api call limit reached, free model is pinned")
)

// Engine owns one simulation session. All mutations of the world graph flow
// through it, from both user intents and scheduled agent turns.
type Engine struct {
	cfg     config.Config
	graph   *store.Graph
	gov     *budget.Governor
	real    provider.ActionProvider
	offline provider.ActionProvider
	chats   *chat.Manager
	feed    *Feed
	sched   *Scheduler

	db         *journal.DB
	transcript *journal.TranscriptWriter

	mu           sync.Mutex
	rng          *rand.Rand
	translations map[string]string
}

// Options carries the engine's collaborators. Real may be nil when no API
// key is configured; the engine then pins the offline provider for the whole
// session. DB and Transcript are optional.
type Options struct {
	Config     config.Config
	Graph      *store.Graph
	Real       provider.ActionProvider
	Offline    provider.ActionProvider
	DB         *journal.DB
	Transcript *journal.TranscriptWriter
	Seed       int64
}

// NewEngine wires a session together.
func NewEngine(opts Options) *Engine {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		cfg:          opts.Config,
		graph:        opts.Graph,
		gov:          budget.New(opts.Config.Simulation.APICallLimit),
		real:         opts.Real,
		offline:      opts.Offline,
		db:           opts.DB,
		transcript:   opts.Transcript,
		feed:         NewFeed(100),
		rng:          rand.New(rand.NewSource(seed)),
		translations: make(map[string]string),
	}
	e.chats = chat.New(opts.Graph, e.Provider, e.countCalls, e.logf)
	e.sched = NewScheduler(e, opts.Config.TickInterval())
	if e.real == nil {
		e.gov.SetFallback(true)
		e.logf("No API key configured. Running on the free AI model.")
	}
	return e
}

// Graph exposes the world store, mainly for the HTTP gateway.
func (e *Engine) Graph() *store.Graph { return e.graph }

// Feed exposes the session activity log.
func (e *Engine) Feed() *Feed { return e.feed }

// Chats exposes the chat session manager.
func (e *Engine) Chats() *chat.Manager { return e.chats }

// Scheduler exposes the turn scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Budget exposes the call governor.
func (e *Engine) Budget() *budget.Governor { return e.gov }

// Provider resolves the provider for the next call: the network-backed one
// until the budget governor flips to fallback, the offline one after.
func (e *Engine) Provider() provider.ActionProvider {
	if e.real == nil || e.gov.FallbackActive() {
		return e.offline
	}
	return e.real
}

// countCalls meters n provider calls against the budget. Calls served by the
// offline provider are free. Crossing the ceiling is announced once.
func (e *Engine) countCalls(n int) {
	if e.gov.RecordCalls(n) {
		e.logf("API call limit reached (%d). Switching to the free AI model to continue the simulation.", e.gov.Limit())
	}
}

// logf appends a formatted line to the session feed.
func (e *Engine) logf(format string, args ...any) {
	e.feed.Append(fmt.Sprintf(format, args...))
}

// record journals an applied action. Journal and transcript failures are
// logged and otherwise ignored; the simulation does not depend on them.
func (e *Engine) record(ctx context.Context, typ, actor string, detail any) {
	now := time.Now().UTC()
	if e.db != nil {
		if err := e.db.PutAction(ctx, now, typ, actor, detail); err != nil {
			logging.Error("journal put failed", map[string]any{"type": typ, "err": err.Error()})
		}
	}
	if e.transcript != nil {
		entry := map[string]any{"ts": now, "type": typ, "actor": actor, "detail": detail}
		if err := e.transcript.Write(entry); err != nil {
			logging.Error("transcript write failed", map[string]any{"type": typ, "err": err.Error()})
		}
	}
}

// UserPost publishes a text post authored by the user.
func (e *Engine) UserPost(ctx context.Context, content string) (model.Post, error) {
	post, ok := e.graph.CreatePost(model.UserID, content, "")
	if !ok {
		return model.Post{}, errors.New("user character missing")
	}
	e.logf("You published a post.")
	e.record(ctx, "user_post", model.UserID, map[string]any{"postId": post.ID})
	return post, nil
}

// UserComment adds the user's comment (or reply when parentCommentID is set)
// and notifies the parent author.
func (e *Engine) UserComment(ctx context.Context, postID, content, parentCommentID string) (model.Comment, error) {
	post, ok := e.graph.Post(postID)
	if !ok {
		return model.Comment{}, ErrUnknownPost
	}
	c, parentAuthor, ok := e.graph.AddComment(postID, model.UserID, content, parentCommentID)
	if !ok {
		return model.Comment{}, ErrUnknownPost
	}
	notified := post.AuthorID
	if parentAuthor != "" {
		notified = parentAuthor
	}
	if notified != model.UserID {
		e.graph.AddCharacterEvent(notified, fmt.Sprintf("The user replied to me: %q", content))
	}
	e.record(ctx, "user_comment", model.UserID, map[string]any{"postId": postID, "commentId": c.ID})
	return c, nil
}

// UserReact applies the user's reaction to a post, toggling or replacing an
// existing one per the store's rules.
func (e *Engine) UserReact(ctx context.Context, postID string, kind model.ReactionKind) error {
	if !model.ValidReaction(kind) {
		return ErrInvalidReaction
	}
	if !e.graph.AddReaction(postID, model.UserID, kind) {
		return ErrUnknownPost
	}
	e.record(ctx, "user_react", model.UserID, map[string]any{"postId": postID, "kind": kind})
	return nil
}

// UserJoinGroup adds the user to a group. Joining twice is a no-op.
func (e *Engine) UserJoinGroup(ctx context.Context, groupID string) error {
	if _, ok := e.graph.Group(groupID); !ok {
		return ErrUnknownGroup
	}
	e.graph.JoinGroup(groupID, model.UserID)
	e.record(ctx, "user_join_group", model.UserID, map[string]any{"groupId": groupID})
	return nil
}

// ResolveNotification finishes a pending image-post request. Approval spends
// a budgeted call on image generation and publishes the post; a generation
// failure leaves the feed untouched and tells the character. Rejection only
// tells the character.
func (e *Engine) ResolveNotification(ctx context.Context, id string, approve bool) error {
	status := model.NotificationRejected
	if approve {
		status = model.NotificationApproved
	}
	n, ok := e.graph.ResolveNotification(id, status)
	if !ok {
		if _, exists := e.graph.Notification(id); exists {
			return ErrAlreadyResolved
		}
		return ErrUnknownNotification
	}
	ch, _ := e.graph.Character(n.CharacterID)
	if !approve {
		e.graph.AddCharacterEvent(n.CharacterID, "The user rejected my image post request.")
		e.logf("You rejected %s's image post.", ch.Name)
		e.record(ctx, "notification_rejected", model.UserID, map[string]any{"notificationId": id})
		return nil
	}

	e.countCalls(1)
	url, err := e.Provider().GenerateImage(ctx, n.ImagePrompt)
	if err != nil {
		e.graph.AddCharacterEvent(n.CharacterID, "My image post failed to generate after being approved.")
		e.logf("Image generation for %s failed.", ch.Name)
		logging.Error("image generation failed", map[string]any{"character": n.CharacterID, "err": err.Error()})
		return nil
	}
	post, _ := e.graph.CreatePost(n.CharacterID, n.PostContent, url)
	e.graph.AddCharacterEvent(n.CharacterID, "The user approved my image post and it was published.")
	e.logf("%s published an approved image post.", ch.Name)
	e.record(ctx, "notification_approved", model.UserID, map[string]any{"notificationId": id, "postId": post.ID})
	return nil
}

// ToggleFallback switches between the network and offline providers at the
// user's request. Once the ceiling forced the fallback the switch back is
// refused.
func (e *Engine) ToggleFallback(on bool) error {
	if e.real == nil && !on {
		return ErrFallbackPinned
	}
	if !e.gov.SetFallback(on) {
		return ErrFallbackPinned
	}
	if on {
		e.logf("Switched to the free AI model.")
	} else {
		e.logf("Switched back to the Gemini model.")
	}
	return nil
}

// TranslationUnavailable is shown when the provider returns no translation.
const TranslationUnavailable = "(Translation not available)"

// Translate returns the Arabic translation of a post's text, served from the
// session cache when the same post was translated before. A failed
// translation is not cached, so a later request can retry.
func (e *Engine) Translate(ctx context.Context, postID, text string) string {
	e.mu.Lock()
	if t, ok := e.translations[postID]; ok {
		e.mu.Unlock()
		return t
	}
	e.mu.Unlock()

	e.countCalls(1)
	t := e.Provider().Translate(ctx, text)
	if t == "" {
		return TranslationUnavailable
	}

	e.mu.Lock()
	e.translations[postID] = t
	e.mu.Unlock()
	return t
}

// SendChatMessage forwards to the chat manager.
func (e *Engine) SendChatMessage(ctx context.Context, characterID, text string) (provider.Stream, error) {
	return e.chats.SendMessage(ctx, characterID, text)
}

// State is the full session view served to clients.
type State struct {
	Characters    []model.Character    `json:"characters"`
	Posts         []model.Post         `json:"posts"`
	Groups        []model.Group        `json:"groups"`
	Notifications []model.Notification `json:"notifications"`
	Logs          []string             `json:"logs"`
	Running       bool                 `json:"running"`
	Provider      string               `json:"provider"`
	APICalls      int                  `json:"apiCalls"`
	APICallLimit  int                  `json:"apiCallLimit"`
	Fallback      bool                 `json:"fallbackActive"`
}

// State assembles a consistent view of the session.
func (e *Engine) State() State {
	snap := e.graph.Snapshot()
	return State{
		Characters:    snap.Characters,
		Posts:         snap.Posts,
		Groups:        snap.Groups,
		Notifications: e.graph.Notifications(),
		Logs:          e.feed.Lines(),
		Running:       e.sched.Running(),
		Provider:      e.Provider().Name(),
		APICalls:      e.gov.Calls(),
		APICallLimit:  e.gov.Limit(),
		Fallback:      e.gov.FallbackActive(),
	}
}

// ActivityBucket is one hour of journaled actions, grouped by type.
type ActivityBucket struct {
	Hour   time.Time      `json:"hour"`
	Counts map[string]int `json:"counts"`
}

// Activity aggregates the session journal into hourly buckets. Returns nil
// when the session runs without a journal.
func (e *Engine) Activity(ctx context.Context, start, end time.Time) ([]ActivityBucket, error) {
	if e.db == nil {
		return nil, nil
	}
	actions, err := e.db.LoadActionsRange(ctx, start, end, "")
	if err != nil {
		return nil, err
	}
	buckets := analytics.HourlyActivity(actions)
	out := make([]ActivityBucket, 0, len(buckets))
	for _, hour := range analytics.SortedBucketKeys(buckets) {
		out = append(out, ActivityBucket{Hour: hour, Counts: buckets[hour]})
	}
	return out, nil
}

// Close stops the scheduler and flushes session storage.
func (e *Engine) Close() error {
	e.sched.Stop()
	var first error
	if e.transcript != nil {
		if err := e.transcript.Close(); err != nil {
			first = err
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// contentFailed reports whether generated text is the neutral fallback.
// A turn whose content generation failed is abandoned without partial writes.
func contentFailed(s string) bool { return s == provider.FallbackText }
