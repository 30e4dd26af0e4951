package offline

import (
	"context"
	"io"
	"strings"
	"testing"

	"aibook/internal/model"
)

func testProvider() *Provider {
	p := NewWithSeed(42)
	p.SetDelay(0)
	return p
}

func TestDecideNeverTargetsSelf(t *testing.T) {
	p := testProvider()
	ch := model.Character{ID: "a", Name: "Aoi", Interests: []string{"tea"}}
	snap := model.Snapshot{
		Posts: []model.Post{
			{ID: "p1", AuthorID: "a", Content: "my own post about tea"},
		},
	}
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d := p.DecideNextAction(ctx, ch, snap)
		if (d.Action == model.ActionComment || d.Action == model.ActionReact) && d.TargetID == "p1" {
			t.Fatalf("targeted own post: %+v", d)
		}
	}
}

func TestDecideSkipsAlreadyCommentedPosts(t *testing.T) {
	p := testProvider()
	ch := model.Character{ID: "a", Name: "Aoi"}
	snap := model.Snapshot{
		Posts: []model.Post{
			{ID: "p1", AuthorID: "b", Comments: []*model.Comment{{ID: "c1", AuthorID: "x", Replies: []*model.Comment{{ID: "c2", AuthorID: "a"}}}}},
		},
	}
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d := p.DecideNextAction(ctx, ch, snap)
		if d.Action == model.ActionComment {
			t.Fatalf("commented twice on same post: %+v", d)
		}
	}
}

func TestDecideNeverJoinsOwnGroups(t *testing.T) {
	p := testProvider()
	ch := model.Character{ID: "a"}
	snap := model.Snapshot{
		Groups: []model.Group{{ID: "g1", CreatedBy: "b", MemberIDs: []string{"b", "a"}}},
	}
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d := p.DecideNextAction(ctx, ch, snap)
		if d.Action == model.ActionJoinGroup {
			t.Fatalf("joined a group it is already in: %+v", d)
		}
	}
}

func TestInterestRelevanceDrivesTargeting(t *testing.T) {
	p := testProvider()
	ch := model.Character{ID: "a", Interests: []string{"ramen"}}
	snap := model.Snapshot{
		Posts: []model.Post{
			{ID: "p1", AuthorID: "b", Content: "thoughts about the weather"},
			{ID: "p2", AuthorID: "c", Content: "the best ramen broth takes days"},
		},
	}
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d := p.DecideNextAction(ctx, ch, snap)
		if d.Action == model.ActionReact || d.Action == model.ActionComment {
			if d.TargetID != "p2" {
				t.Fatalf("ignored the relevant post: %+v", d)
			}
		}
	}
}

func TestGeneratedReactionIsValid(t *testing.T) {
	p := testProvider()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		k := p.GenerateReaction(ctx, model.Character{ID: "a"}, model.Post{ID: "p"})
		if !model.ValidReaction(k) {
			t.Fatalf("invalid reaction %q", k)
		}
	}
}

func TestChatStreamCompleteness(t *testing.T) {
	p := testProvider()
	ch := model.Character{ID: "a", Name: "Aoi"}
	s := p.ChatStream(context.Background(), ch, nil, "hello there")
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		b.WriteString(frag)
	}
	got := b.String()
	if !strings.Contains(got, "Aoi") || !strings.Contains(got, "hello there") {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestSentimentLexicon(t *testing.T) {
	p := testProvider()
	ctx := context.Background()
	ch := model.Character{ID: "a"}
	if !p.AnalyzeSentiment(ctx, ch, "you are so stupid") {
		t.Fatal("hostile message not flagged")
	}
	if p.AnalyzeSentiment(ctx, ch, "I love your posts") {
		t.Fatal("friendly message flagged")
	}
}
