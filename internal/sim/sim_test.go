package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"aibook/internal/config"
	"aibook/internal/model"
	"aibook/internal/provider"
	"aibook/internal/provider/offline"
	"aibook/internal/store"
)

// stubProvider returns scripted values so turns are deterministic.
type stubProvider struct {
	decision      model.Decision
	post          string
	imagePost     model.ImagePost
	comment       string
	reaction      model.ReactionKind
	group         model.GroupDetails
	image         string
	imageErr      error
	translated    int
	failTranslate int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) DecideNextAction(context.Context, model.Character, model.Snapshot) model.Decision {
	return s.decision
}
func (s *stubProvider) GeneratePost(context.Context, model.Character, model.Snapshot) string {
	return s.post
}
func (s *stubProvider) GenerateImagePost(context.Context, model.Character) model.ImagePost {
	return s.imagePost
}
func (s *stubProvider) GenerateComment(context.Context, model.Character, model.Post, model.Snapshot, *model.Comment) string {
	return s.comment
}
func (s *stubProvider) GenerateReaction(context.Context, model.Character, model.Post) model.ReactionKind {
	return s.reaction
}
func (s *stubProvider) GenerateGroupDetails(context.Context, model.Character) model.GroupDetails {
	return s.group
}
func (s *stubProvider) GenerateImage(context.Context, string) (string, error) {
	return s.image, s.imageErr
}
func (s *stubProvider) Translate(_ context.Context, text string) string {
	s.translated++
	if s.failTranslate > 0 {
		s.failTranslate--
		return ""
	}
	return "ar: " + text
}
func (s *stubProvider) AnalyzeSentiment(context.Context, model.Character, string) bool { return false }
func (s *stubProvider) ChatStream(context.Context, model.Character, []model.ChatMessage, string) provider.Stream {
	return provider.NewSliceStream("ok")
}

func newTestEngine(stub *stubProvider, limit int) *Engine {
	roster := []model.Character{
		{ID: "char_a", Name: "Aoi", Avatar: "🌸", Personality: "calm", Interests: []string{"tea"}},
	}
	cfg := config.Default()
	cfg.Simulation.APICallLimit = limit
	return NewEngine(Options{
		Config:  cfg,
		Graph:   store.New(roster, model.NewUserCharacter("Annas")),
		Real:    stub,
		Offline: offline.NewWithSeed(1),
		Seed:    1,
	})
}

func TestRunTurnCommentAppliesOnce(t *testing.T) {
	stub := &stubProvider{comment: "nice one"}
	e := newTestEngine(stub, 50)
	post, err := e.UserPost(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	stub.decision = model.Decision{Action: model.ActionComment, TargetID: post.ID, Reasoning: "wants to chime in"}

	if pause := e.RunTurn(context.Background()); pause {
		t.Fatal("turn requested pause")
	}
	if got := e.Graph().CommentCount(post.ID); got != 1 {
		t.Fatalf("comment count = %d, want 1", got)
	}
	user, _ := e.Graph().Character(model.UserID)
	if len(user.RecentEvents) != 1 || !strings.Contains(user.RecentEvents[0], "Aoi commented") {
		t.Fatalf("user events = %v", user.RecentEvents)
	}
	if got := e.Budget().Calls(); got != 2 {
		t.Fatalf("metered calls = %d, want 2 (decision + content)", got)
	}
}

func TestRunTurnDowngradesOnMissingTarget(t *testing.T) {
	stub := &stubProvider{comment: "unused", decision: model.Decision{
		Action: model.ActionComment, TargetID: "post_gone", Reasoning: "stale target",
	}}
	e := newTestEngine(stub, 50)

	e.RunTurn(context.Background())
	if got := len(e.Graph().Posts()); got != 0 {
		t.Fatalf("posts = %d, want 0", got)
	}
	if got := e.Budget().Calls(); got != 1 {
		t.Fatalf("metered calls = %d, want 1 (no content call for a dead target)", got)
	}
}

func TestRunTurnSkipsAlreadyCommentedPost(t *testing.T) {
	stub := &stubProvider{comment: "again"}
	e := newTestEngine(stub, 50)
	post, _ := e.UserPost(context.Background(), "hello")
	stub.decision = model.Decision{Action: model.ActionComment, TargetID: post.ID, Reasoning: "chimes in"}

	e.RunTurn(context.Background())
	e.RunTurn(context.Background())
	if got := e.Graph().CommentCount(post.ID); got != 1 {
		t.Fatalf("comment count = %d, want 1 (second turn must downgrade)", got)
	}
}

func TestRunTurnContentFailureLeavesNoPartialState(t *testing.T) {
	stub := &stubProvider{comment: provider.FallbackText}
	e := newTestEngine(stub, 50)
	post, _ := e.UserPost(context.Background(), "hello")
	stub.decision = model.Decision{Action: model.ActionComment, TargetID: post.ID, Reasoning: "tries"}

	e.RunTurn(context.Background())
	if got := e.Graph().CommentCount(post.ID); got != 0 {
		t.Fatalf("comment count = %d, want 0 after failed generation", got)
	}
	user, _ := e.Graph().Character(model.UserID)
	if len(user.RecentEvents) != 0 {
		t.Fatalf("user events = %v, want none", user.RecentEvents)
	}
}

func TestRunTurnImagePostAwaitsApproval(t *testing.T) {
	stub := &stubProvider{
		decision:  model.Decision{Action: model.ActionPostImage, Reasoning: "feels artistic"},
		imagePost: model.ImagePost{Content: "sunset over the bay", Prompt: "a watercolor sunset"},
	}
	e := newTestEngine(stub, 50)

	e.RunTurn(context.Background())
	if got := len(e.Graph().Posts()); got != 0 {
		t.Fatalf("posts = %d, want 0 before approval", got)
	}
	ns := e.Graph().Notifications()
	if len(ns) != 1 || ns[0].Status != model.NotificationPending {
		t.Fatalf("notifications = %+v", ns)
	}
}

func TestResolveNotificationApprove(t *testing.T) {
	stub := &stubProvider{
		decision:  model.Decision{Action: model.ActionPostImage, Reasoning: "feels artistic"},
		imagePost: model.ImagePost{Content: "sunset", Prompt: "a sunset"},
		image:     "data:image/jpeg;base64,xxx",
	}
	e := newTestEngine(stub, 50)
	e.RunTurn(context.Background())
	n := e.Graph().Notifications()[0]

	if err := e.ResolveNotification(context.Background(), n.ID, true); err != nil {
		t.Fatal(err)
	}
	posts := e.Graph().Posts()
	if len(posts) != 1 || posts[0].ImageURL == "" || posts[0].Content != "sunset" {
		t.Fatalf("posts = %+v", posts)
	}
	ch, _ := e.Graph().Character("char_a")
	if len(ch.RecentEvents) == 0 || !strings.Contains(ch.RecentEvents[len(ch.RecentEvents)-1], "approved") {
		t.Fatalf("events = %v", ch.RecentEvents)
	}
	if err := e.ResolveNotification(context.Background(), n.ID, true); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve err = %v", err)
	}
}

func TestResolveNotificationReject(t *testing.T) {
	stub := &stubProvider{
		decision:  model.Decision{Action: model.ActionPostImage, Reasoning: "feels artistic"},
		imagePost: model.ImagePost{Content: "sunset", Prompt: "a sunset"},
	}
	e := newTestEngine(stub, 50)
	e.RunTurn(context.Background())
	n := e.Graph().Notifications()[0]

	if err := e.ResolveNotification(context.Background(), n.ID, false); err != nil {
		t.Fatal(err)
	}
	if got := len(e.Graph().Posts()); got != 0 {
		t.Fatalf("posts = %d, want 0 after rejection", got)
	}
	ch, _ := e.Graph().Character("char_a")
	if len(ch.RecentEvents) == 0 || !strings.Contains(ch.RecentEvents[len(ch.RecentEvents)-1], "rejected") {
		t.Fatalf("events = %v", ch.RecentEvents)
	}
}

func TestResolveNotificationImageFailure(t *testing.T) {
	stub := &stubProvider{
		decision:  model.Decision{Action: model.ActionPostImage, Reasoning: "feels artistic"},
		imagePost: model.ImagePost{Content: "sunset", Prompt: "a sunset"},
		imageErr:  errors.New("quota exceeded"),
	}
	e := newTestEngine(stub, 50)
	e.RunTurn(context.Background())
	n := e.Graph().Notifications()[0]

	if err := e.ResolveNotification(context.Background(), n.ID, true); err != nil {
		t.Fatal(err)
	}
	if got := len(e.Graph().Posts()); got != 0 {
		t.Fatalf("posts = %d, want 0 after failed generation", got)
	}
	ch, _ := e.Graph().Character("char_a")
	if len(ch.RecentEvents) == 0 || !strings.Contains(ch.RecentEvents[len(ch.RecentEvents)-1], "failed to generate") {
		t.Fatalf("events = %v", ch.RecentEvents)
	}
}

func TestCeilingPinsOfflineProvider(t *testing.T) {
	stub := &stubProvider{decision: model.Decision{Action: model.ActionPost, Reasoning: "inspired"}, post: "first post"}
	e := newTestEngine(stub, 2)

	e.RunTurn(context.Background())
	if !e.Budget().FallbackActive() {
		t.Fatal("fallback not active after reaching the ceiling")
	}
	if got := e.Provider().Name(); got != "offline" {
		t.Fatalf("provider = %q, want offline", got)
	}
	if err := e.ToggleFallback(false); !errors.Is(err, ErrFallbackPinned) {
		t.Fatalf("toggle err = %v, want ErrFallbackPinned", err)
	}
	before := e.Budget().Calls()
	e.RunTurn(context.Background())
	if got := e.Budget().Calls(); got != before {
		t.Fatalf("offline turns must not meter calls: %d -> %d", before, got)
	}
}

func TestManualFallbackToggleBeforeCeiling(t *testing.T) {
	stub := &stubProvider{decision: provider.IdleDecision()}
	e := newTestEngine(stub, 50)

	if err := e.ToggleFallback(true); err != nil {
		t.Fatal(err)
	}
	if got := e.Provider().Name(); got != "offline" {
		t.Fatalf("provider = %q, want offline", got)
	}
	if err := e.ToggleFallback(false); err != nil {
		t.Fatal(err)
	}
	if got := e.Provider().Name(); got != "stub" {
		t.Fatalf("provider = %q, want stub", got)
	}
}

func TestTranslateCachesPerPost(t *testing.T) {
	stub := &stubProvider{decision: provider.IdleDecision()}
	e := newTestEngine(stub, 50)

	got := e.Translate(context.Background(), "post_1", "hello")
	if got != "ar: hello" {
		t.Fatalf("translate = %q", got)
	}
	e.Translate(context.Background(), "post_1", "hello")
	if stub.translated != 1 {
		t.Fatalf("provider translate calls = %d, want 1", stub.translated)
	}
	if got := e.Budget().Calls(); got != 1 {
		t.Fatalf("metered calls = %d, want 1", got)
	}
}

func TestTranslateFailureIsVisibleAndRetried(t *testing.T) {
	stub := &stubProvider{decision: provider.IdleDecision(), failTranslate: 1}
	e := newTestEngine(stub, 50)

	if got := e.Translate(context.Background(), "post_1", "hello"); got != TranslationUnavailable {
		t.Fatalf("failed translate = %q, want %q", got, TranslationUnavailable)
	}
	if got := e.Translate(context.Background(), "post_1", "hello"); got != "ar: hello" {
		t.Fatalf("retried translate = %q, want the provider result", got)
	}
	if stub.translated != 2 {
		t.Fatalf("provider translate calls = %d, want 2 (failure must not be cached)", stub.translated)
	}
	if got := e.Translate(context.Background(), "post_1", "hello"); got != "ar: hello" {
		t.Fatalf("cached translate = %q", got)
	}
	if stub.translated != 2 {
		t.Fatalf("provider translate calls = %d, want 2 (success must be cached)", stub.translated)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	stub := &stubProvider{decision: provider.IdleDecision()}
	e := newTestEngine(stub, 50)
	s := e.Scheduler()

	if !s.Start() {
		t.Fatal("start failed")
	}
	if s.Start() {
		t.Fatal("second start should be a no-op")
	}
	if !s.Running() {
		t.Fatal("not running after start")
	}
	s.Stop()
	if s.Running() {
		t.Fatal("still running after stop")
	}
	s.Stop()
}

// slowDecider blocks inside the decision call until released, bailing out
// early if its context is cancelled.
type slowDecider struct {
	stubProvider
	entered chan struct{}
	release chan struct{}
}

func (s *slowDecider) DecideNextAction(ctx context.Context, _ model.Character, _ model.Snapshot) model.Decision {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return provider.IdleDecision()
	case <-s.release:
		return model.Decision{Action: model.ActionPost, Reasoning: "inspired"}
	}
}

func TestStopLetsInFlightTurnFinish(t *testing.T) {
	dec := &slowDecider{
		stubProvider: stubProvider{post: "finished after stop"},
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	roster := []model.Character{
		{ID: "char_a", Name: "Aoi", Avatar: "🌸", Personality: "calm"},
	}
	cfg := config.Default()
	e := NewEngine(Options{
		Config:  cfg,
		Graph:   store.New(roster, model.NewUserCharacter("Annas")),
		Real:    dec,
		Offline: offline.NewWithSeed(1),
		Seed:    1,
	})
	s := NewScheduler(e, 10*time.Millisecond)
	if !s.Start() {
		t.Fatal("start failed")
	}
	<-dec.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while a turn was still in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(dec.release)
	<-stopped

	posts := e.Graph().Posts()
	if len(posts) != 1 || posts[0].Content != "finished after stop" {
		t.Fatalf("posts = %+v, want the in-flight turn's post applied", posts)
	}
	if s.Running() {
		t.Fatal("still running after stop")
	}
}

func TestSchedulerRefusesEmptyRoster(t *testing.T) {
	cfg := config.Default()
	e := NewEngine(Options{
		Config:  cfg,
		Graph:   store.New(nil, model.NewUserCharacter("Annas")),
		Real:    &stubProvider{},
		Offline: offline.NewWithSeed(1),
		Seed:    1,
	})
	if e.Scheduler().Start() {
		t.Fatal("start should fail with no agents")
	}
}

func TestFeedBoundedAndFansOut(t *testing.T) {
	f := NewFeed(3)
	sub := f.Subscribe()
	defer f.Unsubscribe(sub)

	for _, line := range []string{"a", "b", "c", "d"} {
		f.Append(line)
	}
	lines := f.Lines()
	if len(lines) != 3 || lines[0] != "b" || lines[2] != "d" {
		t.Fatalf("lines = %v", lines)
	}
	if got := <-sub; got != "a" {
		t.Fatalf("first fan-out line = %q", got)
	}
}
