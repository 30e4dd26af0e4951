package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aibook/internal/logging"
	"aibook/internal/metrics"
	"aibook/internal/model"
	"aibook/internal/provider"
)

// Scheduler paces agent turns. Turns run sequentially on one goroutine: a
// tick that overruns the interval delays the next turn rather than stacking.
type Scheduler struct {
	eng      *Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(eng *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 8 * time.Second
	}
	return &Scheduler{eng: eng, interval: interval}
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the tick loop. Starting an already-running scheduler or a
// session with no agents is a no-op and returns false.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	if len(s.eng.graph.Agents()) == 0 {
		s.eng.logf("Cannot start the simulation: no agents on the roster.")
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.eng.logf("Simulation started.")
	logging.Info("simulation started", map[string]any{"interval": s.interval.String()})
	return true
}

// Stop halts the tick loop and waits for an in-flight turn to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.eng.logf("Simulation paused.")
}

// stopFromLoop marks the scheduler stopped from inside the tick goroutine.
func (s *Scheduler) stopFromLoop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel, s.done = nil, nil
	}
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	// Stop cancels future ticks only. An in-flight turn keeps an uncancelled
	// context so its provider calls run to completion and apply their state;
	// Stop still blocks on done until the turn finishes.
	turnCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.eng.RunTurn(turnCtx) {
				s.eng.logf("API call limit reached with the free model disabled. Simulation paused.")
				s.stopFromLoop()
				return
			}
		}
	}
}

// RunTurn executes one agent turn end to end and reports whether the
// scheduler should pause (budget exhausted with the fallback switched off).
// Provider failures surface as neutral fallbacks, so a turn never partially
// applies a multi-step action: content is generated first and the turn is
// abandoned if generation failed.
func (e *Engine) RunTurn(ctx context.Context) (pause bool) {
	start := time.Now()
	metrics.Ticks.Inc()
	defer metrics.ObserveTickDuration(start)
	defer func() {
		if r := recover(); r != nil {
			metrics.TickErrors.Inc()
			logging.Error("turn panic", map[string]any{"panic": r})
		}
	}()

	if e.gov.Exhausted() && !e.gov.FallbackActive() {
		return true
	}

	agents := e.graph.Agents()
	if len(agents) == 0 {
		return false
	}
	e.mu.Lock()
	agent := agents[e.rng.Intn(len(agents))]
	e.mu.Unlock()

	snap := e.graph.Snapshot()
	e.logf("%s is thinking...", agent.Name)

	e.countCalls(1)
	p := e.Provider()
	decision := p.DecideNextAction(ctx, agent, snap)
	e.logf("[AI] %s: %s", agent.Name, decision.Reasoning)

	e.dispatch(ctx, p, agent, snap, decision)
	return false
}

// dispatch applies a decision against live state. Targets from the decision
// were chosen against a snapshot and are revalidated here; a vanished or
// invalid target downgrades the turn to idle.
func (e *Engine) dispatch(ctx context.Context, p provider.ActionProvider, agent model.Character, snap model.Snapshot, d model.Decision) {
	switch d.Action {
	case model.ActionPost:
		e.countCalls(1)
		content := p.GeneratePost(ctx, agent, snap)
		if contentFailed(content) {
			e.logf("%s lost their train of thought.", agent.Name)
			return
		}
		post, _ := e.graph.CreatePost(agent.ID, content, "")
		e.logf("%s published a post.", agent.Name)
		e.record(ctx, "agent_post", agent.ID, map[string]any{"postId": post.ID})

	case model.ActionPostImage:
		e.countCalls(1)
		ip := p.GenerateImagePost(ctx, agent)
		if contentFailed(ip.Content) || ip.Prompt == "" {
			e.logf("%s lost their train of thought.", agent.Name)
			return
		}
		if _, ok := e.graph.AddNotification(agent.ID, ip.Prompt, ip.Content); ok {
			e.logf("%s wants to publish an image post and awaits your approval.", agent.Name)
			e.record(ctx, "agent_image_request", agent.ID, map[string]any{"prompt": ip.Prompt})
		}

	case model.ActionComment, model.ActionReplyToComment:
		post, ok := e.graph.Post(d.TargetID)
		if !ok {
			e.logf("%s wanted to comment on a post that is gone.", agent.Name)
			return
		}
		if d.Action == model.ActionComment {
			if post.AuthorID == agent.ID || e.graph.HasCommented(post.ID, agent.ID) {
				return
			}
		}
		var parent *model.Comment
		if d.Action == model.ActionReplyToComment {
			pc, ok := e.graph.FindComment(d.TargetID, d.TargetSubID)
			if !ok {
				e.logf("%s wanted to reply to a comment that is gone.", agent.Name)
				return
			}
			parent = &pc
		}
		e.countCalls(1)
		content := p.GenerateComment(ctx, agent, post, snap, parent)
		if contentFailed(content) {
			e.logf("%s lost their train of thought.", agent.Name)
			return
		}
		parentID := ""
		if parent != nil {
			parentID = parent.ID
		}
		c, parentAuthor, ok := e.graph.AddComment(d.TargetID, agent.ID, content, parentID)
		if !ok {
			return
		}
		notified := post.AuthorID
		if parentAuthor != "" {
			notified = parentAuthor
		}
		if notified != agent.ID {
			e.graph.AddCharacterEvent(notified, fmt.Sprintf("%s commented on my thread: %q", agent.Name, content))
		}
		e.logf("%s commented on %s's post.", agent.Name, post.AuthorName)
		e.record(ctx, "agent_comment", agent.ID, map[string]any{"postId": post.ID, "commentId": c.ID})

	case model.ActionReact:
		post, ok := e.graph.Post(d.TargetID)
		if !ok {
			e.logf("%s wanted to react to a post that is gone.", agent.Name)
			return
		}
		e.countCalls(1)
		kind := p.GenerateReaction(ctx, agent, post)
		if !model.ValidReaction(kind) {
			return
		}
		e.graph.AddReaction(post.ID, agent.ID, kind)
		if post.AuthorID != agent.ID {
			e.graph.AddCharacterEvent(post.AuthorID, fmt.Sprintf("%s reacted %s to my post.", agent.Name, kind))
		}
		e.logf("%s reacted %s to %s's post.", agent.Name, kind, post.AuthorName)
		e.record(ctx, "agent_react", agent.ID, map[string]any{"postId": post.ID, "kind": kind})

	case model.ActionCreateGroup:
		e.countCalls(1)
		gd := p.GenerateGroupDetails(ctx, agent)
		if gd.Name == "" || contentFailed(gd.Name) {
			e.logf("%s lost their train of thought.", agent.Name)
			return
		}
		g, ok := e.graph.CreateGroup(agent.ID, gd.Name, gd.Description)
		if !ok {
			return
		}
		e.logf("%s created the group %q.", agent.Name, g.Name)
		e.record(ctx, "agent_create_group", agent.ID, map[string]any{"groupId": g.ID})

	case model.ActionJoinGroup:
		g, ok := e.graph.Group(d.TargetID)
		if !ok {
			e.logf("%s wanted to join a group that is gone.", agent.Name)
			return
		}
		if e.graph.JoinGroup(g.ID, agent.ID) {
			e.logf("%s joined the group %q.", agent.Name, g.Name)
			e.record(ctx, "agent_join_group", agent.ID, map[string]any{"groupId": g.ID})
		}

	case model.ActionIdle:
		// Nothing to apply.

	default:
		logging.Warn("unknown action", map[string]any{"action": string(d.Action)})
	}
}
