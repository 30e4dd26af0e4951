// Package chat owns the per-character conversations between the user and
// agents: session history, streaming replies, the ban gate, and the
// provocation flow that feeds character anger.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"aibook/internal/model"
	"aibook/internal/provider"
	"aibook/internal/store"
)

// ErrBusy is returned while a character's previous reply is still streaming.
// Each character has at most one active stream at a time.
var ErrBusy = errors.New("conversation busy")

// ErrUnknownCharacter is returned for chat with an ID not in the roster.
var ErrUnknownCharacter = errors.New("unknown character")

// Manager holds every chat session for the running simulation. Sessions are
// keyed by character ID and cleared on Reset; there is no global state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	graph     *store.Graph
	prov      func() provider.ActionProvider
	countCall func(n int)
	logf      func(format string, args ...any)
}

type session struct {
	messages []model.ChatMessage
	busy     bool
}

// New builds a chat manager. prov resolves the currently active provider,
// countCall meters budget, logf feeds the session log.
func New(graph *store.Graph, prov func() provider.ActionProvider, countCall func(int), logf func(string, ...any)) *Manager {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if countCall == nil {
		countCall = func(int) {}
	}
	return &Manager{
		sessions:  make(map[string]*session),
		graph:     graph,
		prov:      prov,
		countCall: countCall,
		logf:      logf,
	}
}

// History returns a copy of the conversation with the character.
func (m *Manager) History(characterID string) []model.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[characterID]
	if s == nil {
		return nil
	}
	out := make([]model.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset drops all sessions. Used when the simulation session restarts.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*session)
}

// SendMessage records the user's message, runs sentiment analysis (which can
// raise the character's anger and ultimately ban the user), and streams the
// reply. Fragments are appended to the last agent message as they arrive;
// the returned stream mirrors them for the caller.
//
// Messaging a banned character returns a short canned stream and changes
// nothing.
func (m *Manager) SendMessage(ctx context.Context, characterID, text string) (provider.Stream, error) {
	ch, ok := m.graph.Character(characterID)
	if !ok {
		return nil, ErrUnknownCharacter
	}
	if ch.IsBanned {
		return provider.NewSliceStream(fmt.Sprintf("...you have been blocked by %s.", ch.Name)), nil
	}

	m.mu.Lock()
	s := m.sessions[characterID]
	if s == nil {
		s = &session{}
		m.sessions[characterID] = s
	}
	if s.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	history := make([]model.ChatMessage, len(s.messages))
	copy(history, s.messages)
	s.messages = append(s.messages, model.ChatMessage{ID: uuid.NewString(), Role: model.RoleUser, Content: text})
	m.mu.Unlock()

	p := m.prov()

	// Provocation check happens before the reply so the anger is visible in
	// the same turn.
	m.countCall(1)
	if p.AnalyzeSentiment(ctx, ch, text) {
		m.graph.AddCharacterEvent(characterID, fmt.Sprintf("The user said something hurtful to me: %q", text))
		level, banned := m.graph.IncreaseAnger(characterID)
		m.logf("%s's anger towards you has increased to %d.", ch.Name, level)
		if banned {
			m.logf("[CRITICAL] %s has had enough and blocked you!", ch.Name)
		}
	}

	m.countCall(1)
	src := p.ChatStream(ctx, ch, history, text)

	m.mu.Lock()
	s.messages = append(s.messages, model.ChatMessage{ID: uuid.NewString(), Role: model.RoleAgent})
	m.mu.Unlock()

	frags := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(frags)
		defer m.release(characterID)
		for {
			frag, err := src.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				m.appendFragment(characterID, provider.FallbackText)
				errc <- err
				return
			}
			m.appendFragment(characterID, frag)
			select {
			case frags <- frag:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return provider.NewChanStream(frags, errc), nil
}

// appendFragment extends the most recent agent message.
func (m *Manager) appendFragment(characterID, frag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[characterID]
	if s == nil || len(s.messages) == 0 {
		return
	}
	last := &s.messages[len(s.messages)-1]
	if last.Role != model.RoleAgent {
		return
	}
	last.Content += frag
}

func (m *Manager) release(characterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[characterID]; s != nil {
		s.busy = false
	}
}
