package store

import (
	"testing"

	"aibook/internal/model"
)

func TestAddCommentTopLevel(t *testing.T) {
	g := newTestGraph()
	p, _ := g.CreatePost("a", "post", "")
	c, parent, ok := g.AddComment(p.ID, "b", "nice one", "")
	if !ok || parent != "" {
		t.Fatalf("top-level add failed: %v %q", ok, parent)
	}
	if c.AuthorID != "b" || c.AuthorName != "Ban" {
		t.Fatalf("bad comment: %+v", c)
	}
	if g.CommentCount(p.ID) != 1 {
		t.Fatalf("want 1 comment, got %d", g.CommentCount(p.ID))
	}
}

func TestAddReplyDeepTree(t *testing.T) {
	g := newTestGraph()
	p, _ := g.CreatePost("a", "post", "")
	top, _, _ := g.AddComment(p.ID, "b", "top", "")
	mid, parent, ok := g.AddComment(p.ID, "c", "mid", top.ID)
	if !ok || parent != "b" {
		t.Fatalf("reply to top failed: %v %q", ok, parent)
	}
	deep, parent, ok := g.AddComment(p.ID, "a", "deep", mid.ID)
	if !ok || parent != "c" {
		t.Fatalf("reply to mid failed: %v %q", ok, parent)
	}
	_, parent, ok = g.AddComment(p.ID, "b", "deeper", deep.ID)
	if !ok || parent != "a" {
		t.Fatalf("reply to deep failed: %v %q", ok, parent)
	}
	if g.CommentCount(p.ID) != 4 {
		t.Fatalf("want 4 nodes, got %d", g.CommentCount(p.ID))
	}
	// Pre-existing nodes keep identity, author and content
	got, ok := g.FindComment(p.ID, mid.ID)
	if !ok || got.AuthorID != "c" || got.Content != "mid" {
		t.Fatalf("mid node changed: %+v", got)
	}
}

func TestAddCommentInsertsExactlyOneNode(t *testing.T) {
	g := newTestGraph()
	p, _ := g.CreatePost("a", "post", "")
	top, _, _ := g.AddComment(p.ID, "b", "top", "")
	g.AddComment(p.ID, "c", "sibling", "")
	before := g.CommentCount(p.ID)
	if _, _, ok := g.AddComment(p.ID, "a", "reply", top.ID); !ok {
		t.Fatal("valid reply dropped")
	}
	if got := g.CommentCount(p.ID); got != before+1 {
		t.Fatalf("node count moved %d -> %d", before, got)
	}
}

func TestAddCommentSilentDropOnMissingParent(t *testing.T) {
	g := newTestGraph()
	p, _ := g.CreatePost("a", "post", "")
	g.AddComment(p.ID, "b", "top", "")
	before := g.CommentCount(p.ID)
	_, parent, ok := g.AddComment(p.ID, "c", "orphan", "no-such-comment")
	if ok || parent != "" {
		t.Fatalf("orphan reply accepted: %v %q", ok, parent)
	}
	if g.CommentCount(p.ID) != before {
		t.Fatal("dropped reply mutated the tree")
	}
	// Unknown post is also a silent drop
	if _, _, ok := g.AddComment("missing", "c", "x", ""); ok {
		t.Fatal("unknown post accepted")
	}
}

func TestHasCommentedWalksWholeTree(t *testing.T) {
	g := newTestGraph()
	p, _ := g.CreatePost("a", "post", "")
	top, _, _ := g.AddComment(p.ID, "b", "top", "")
	g.AddComment(p.ID, "c", "nested", top.ID)
	if !g.HasCommented(p.ID, "c") {
		t.Fatal("nested author not found")
	}
	if g.HasCommented(p.ID, model.UserID) {
		t.Fatal("phantom author found")
	}
}
