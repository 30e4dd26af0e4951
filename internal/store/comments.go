package store

import (
	"github.com/google/uuid"

	"aibook/internal/model"
)

// AddComment appends a comment to a post. With an empty parentCommentID the
// comment goes to the post's top level; otherwise the comment tree is walked
// depth-first for the parent and the comment lands in its replies. The parent
// comment's author ID comes back so callers can raise a "replied to your
// comment" event.
//
// A missing post or an unresolvable parent drops the comment and returns
// ok=false.
func (g *Graph) AddComment(postID, authorID, content, parentCommentID string) (c model.Comment, parentAuthorID string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, known := g.charIndex[authorID]
	if !known {
		return model.Comment{}, "", false
	}
	authorName := g.characters[i].Name
	for pi := range g.posts {
		if g.posts[pi].ID != postID {
			continue
		}
		p := &g.posts[pi]
		nc := &model.Comment{
			ID:         uuid.NewString(),
			AuthorID:   authorID,
			AuthorName: authorName,
			Content:    content,
			Replies:    []*model.Comment{},
		}
		if parentCommentID == "" {
			p.Comments = append(p.Comments, nc)
			return *nc.Clone(), "", true
		}
		parent := findComment(p.Comments, parentCommentID)
		if parent == nil {
			return model.Comment{}, "", false
		}
		parent.Replies = append(parent.Replies, nc)
		return *nc.Clone(), parent.AuthorID, true
	}
	return model.Comment{}, "", false
}

// FindComment returns a copy of the comment with the given ID anywhere in the
// post's tree.
func (g *Graph) FindComment(postID, commentID string) (model.Comment, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for pi := range g.posts {
		if g.posts[pi].ID != postID {
			continue
		}
		if c := findComment(g.posts[pi].Comments, commentID); c != nil {
			return *c.Clone(), true
		}
	}
	return model.Comment{}, false
}

// CommentCount returns the total number of nodes in the post's comment tree.
func (g *Graph) CommentCount(postID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	for pi := range g.posts {
		if g.posts[pi].ID == postID {
			return countComments(g.posts[pi].Comments)
		}
	}
	return 0
}

// findComment is an iterative depth-first search over the comment arena.
// Every node is visited at most once; identities are unique so the first
// match is the only match.
func findComment(roots []*model.Comment, id string) *model.Comment {
	stack := make([]*model.Comment, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.ID == id {
			return n
		}
		stack = append(stack, n.Replies...)
	}
	return nil
}

func treeHasAuthor(roots []*model.Comment, authorID string) bool {
	stack := make([]*model.Comment, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.AuthorID == authorID {
			return true
		}
		stack = append(stack, n.Replies...)
	}
	return false
}

func countComments(roots []*model.Comment) int {
	total := 0
	stack := make([]*model.Comment, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total++
		stack = append(stack, n.Replies...)
	}
	return total
}
