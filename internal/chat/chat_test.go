package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"aibook/internal/model"
	"aibook/internal/provider"
	"aibook/internal/store"
)

type chatStub struct {
	hostile bool
	frags   []string
	stream  provider.Stream
}

func (s *chatStub) Name() string { return "stub" }
func (s *chatStub) DecideNextAction(context.Context, model.Character, model.Snapshot) model.Decision {
	return provider.IdleDecision()
}
func (s *chatStub) GeneratePost(context.Context, model.Character, model.Snapshot) string { return "" }
func (s *chatStub) GenerateImagePost(context.Context, model.Character) model.ImagePost {
	return model.ImagePost{}
}
func (s *chatStub) GenerateComment(context.Context, model.Character, model.Post, model.Snapshot, *model.Comment) string {
	return ""
}
func (s *chatStub) GenerateReaction(context.Context, model.Character, model.Post) model.ReactionKind {
	return model.ReactionLike
}
func (s *chatStub) GenerateGroupDetails(context.Context, model.Character) model.GroupDetails {
	return model.GroupDetails{}
}
func (s *chatStub) GenerateImage(context.Context, string) (string, error) { return "", nil }
func (s *chatStub) Translate(_ context.Context, text string) string       { return text }
func (s *chatStub) AnalyzeSentiment(context.Context, model.Character, string) bool {
	return s.hostile
}
func (s *chatStub) ChatStream(context.Context, model.Character, []model.ChatMessage, string) provider.Stream {
	if s.stream != nil {
		return s.stream
	}
	return provider.NewSliceStream(s.frags...)
}

// blockingStream holds its first Recv until released, then ends.
type blockingStream struct{ release chan struct{} }

func (b *blockingStream) Recv() (string, error) {
	<-b.release
	return "", io.EOF
}

func newChatManager(stub *chatStub, calls *int) (*Manager, *store.Graph, *[]string) {
	roster := []model.Character{
		{ID: "char_a", Name: "Aoi", Avatar: "🌸", Personality: "calm"},
	}
	g := store.New(roster, model.NewUserCharacter("Annas"))
	logs := &[]string{}
	m := New(g,
		func() provider.ActionProvider { return stub },
		func(n int) {
			if calls != nil {
				*calls += n
			}
		},
		func(format string, args ...any) { *logs = append(*logs, fmt.Sprintf(format, args...)) },
	)
	return m, g, logs
}

func drain(t *testing.T, s provider.Stream) string {
	t.Helper()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return b.String()
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		b.WriteString(frag)
	}
}

func TestSendMessageStreamsIntoHistory(t *testing.T) {
	stub := &chatStub{frags: []string{"Hello ", "there!"}}
	calls := 0
	m, _, _ := newChatManager(stub, &calls)

	s, err := m.SendMessage(context.Background(), "char_a", "hi Aoi")
	if err != nil {
		t.Fatal(err)
	}
	if got := drain(t, s); got != "Hello there!" {
		t.Fatalf("streamed = %q", got)
	}
	h := m.History("char_a")
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].Role != model.RoleUser || h[0].Content != "hi Aoi" {
		t.Fatalf("user message = %+v", h[0])
	}
	if h[1].Role != model.RoleAgent || h[1].Content != "Hello there!" {
		t.Fatalf("agent message = %+v", h[1])
	}
	if calls != 2 {
		t.Fatalf("metered calls = %d, want 2 (sentiment + reply)", calls)
	}
}

func TestProvocationBansAtThreshold(t *testing.T) {
	stub := &chatStub{hostile: true, frags: []string{"..."}}
	m, g, logs := newChatManager(stub, nil)

	for i := 0; i < model.BanThreshold; i++ {
		s, err := m.SendMessage(context.Background(), "char_a", "you are stupid")
		if err != nil {
			t.Fatal(err)
		}
		drain(t, s)
	}
	ch, _ := g.Character("char_a")
	if !ch.IsBanned || ch.AngerLevel != model.BanThreshold {
		t.Fatalf("character = banned %v anger %d", ch.IsBanned, ch.AngerLevel)
	}
	var critical bool
	for _, line := range *logs {
		if strings.Contains(line, "blocked you") {
			critical = true
		}
	}
	if !critical {
		t.Fatalf("no block line in logs: %v", *logs)
	}
	if len(ch.RecentEvents) != model.BanThreshold {
		t.Fatalf("events = %v", ch.RecentEvents)
	}
}

func TestBannedCharacterReturnsCannedStream(t *testing.T) {
	stub := &chatStub{hostile: true, frags: []string{"..."}}
	calls := 0
	m, g, _ := newChatManager(stub, &calls)
	for i := 0; i < model.BanThreshold; i++ {
		s, _ := m.SendMessage(context.Background(), "char_a", "you are stupid")
		drain(t, s)
	}
	before := len(m.History("char_a"))
	callsBefore := calls

	s, err := m.SendMessage(context.Background(), "char_a", "hello?")
	if err != nil {
		t.Fatal(err)
	}
	if got := drain(t, s); !strings.Contains(got, "blocked by Aoi") {
		t.Fatalf("canned stream = %q", got)
	}
	if got := len(m.History("char_a")); got != before {
		t.Fatalf("history grew from %d to %d while banned", before, got)
	}
	if calls != callsBefore {
		t.Fatalf("metered calls changed while banned: %d -> %d", callsBefore, calls)
	}
	ch, _ := g.Character("char_a")
	if ch.AngerLevel != model.BanThreshold {
		t.Fatalf("anger changed after ban: %d", ch.AngerLevel)
	}
}

func TestBusyGuard(t *testing.T) {
	block := &blockingStream{release: make(chan struct{})}
	stub := &chatStub{stream: block}
	m, _, _ := newChatManager(stub, nil)

	s1, err := m.SendMessage(context.Background(), "char_a", "first")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.SendMessage(context.Background(), "char_a", "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second send err = %v, want ErrBusy", err)
	}
	close(block.release)
	drain(t, s1)

	stub.stream = provider.NewSliceStream("ok")
	s3, err := m.SendMessage(context.Background(), "char_a", "third")
	if err != nil {
		t.Fatal(err)
	}
	drain(t, s3)
}

func TestUnknownCharacter(t *testing.T) {
	m, _, _ := newChatManager(&chatStub{}, nil)
	if _, err := m.SendMessage(context.Background(), "char_nobody", "hi"); !errors.Is(err, ErrUnknownCharacter) {
		t.Fatalf("err = %v, want ErrUnknownCharacter", err)
	}
}

func TestResetClearsSessions(t *testing.T) {
	stub := &chatStub{frags: []string{"hi"}}
	m, _, _ := newChatManager(stub, nil)
	s, _ := m.SendMessage(context.Background(), "char_a", "hello")
	drain(t, s)
	if len(m.History("char_a")) == 0 {
		t.Fatal("history empty before reset")
	}
	m.Reset()
	if got := m.History("char_a"); got != nil {
		t.Fatalf("history after reset = %v", got)
	}
}
