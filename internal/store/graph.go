package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"aibook/internal/model"
)

// Graph owns all character, post, group, and notification state for one
// session. Every operation is atomic and leaves the graph consistent; nothing
// here touches providers or logging.
//
// Posts are kept newest-first. Characters are never removed during a session.
type Graph struct {
	mu sync.Mutex

	characters []model.Character
	charIndex  map[string]int

	posts         []model.Post
	groups        []model.Group
	notifications []model.Notification

	now func() time.Time
}

// New builds a graph from a roster plus the user character.
func New(roster []model.Character, user model.Character) *Graph {
	g := &Graph{
		charIndex: make(map[string]int),
		now:       time.Now,
	}
	for _, c := range roster {
		g.charIndex[c.ID] = len(g.characters)
		g.characters = append(g.characters, c.Clone())
	}
	if _, ok := g.charIndex[user.ID]; !ok {
		g.charIndex[user.ID] = len(g.characters)
		g.characters = append(g.characters, user.Clone())
	}
	return g
}

// SetClock overrides the timestamp source, for tests.
func (g *Graph) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Snapshot returns a deep copy of the world for a provider to decide against.
func (g *Graph) Snapshot() model.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := model.Snapshot{
		Characters: make([]model.Character, 0, len(g.characters)),
		Posts:      make([]model.Post, 0, len(g.posts)),
		Groups:     make([]model.Group, 0, len(g.groups)),
	}
	for _, c := range g.characters {
		snap.Characters = append(snap.Characters, c.Clone())
	}
	for _, p := range g.posts {
		snap.Posts = append(snap.Posts, p.Clone())
	}
	for _, gr := range g.groups {
		snap.Groups = append(snap.Groups, gr.Clone())
	}
	return snap
}

// Character returns a copy of the character with the given ID.
func (g *Graph) Character(id string) (model.Character, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.charIndex[id]
	if !ok {
		return model.Character{}, false
	}
	return g.characters[i].Clone(), true
}

// Characters returns copies of all characters, roster order.
func (g *Graph) Characters() []model.Character {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Character, 0, len(g.characters))
	for _, c := range g.characters {
		out = append(out, c.Clone())
	}
	return out
}

// Agents returns the non-user characters.
func (g *Graph) Agents() []model.Character {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Character, 0, len(g.characters))
	for _, c := range g.characters {
		if c.ID != model.UserID {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Post returns a copy of the post with the given ID.
func (g *Graph) Post(id string) (model.Post, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.posts {
		if g.posts[i].ID == id {
			return g.posts[i].Clone(), true
		}
	}
	return model.Post{}, false
}

// Posts returns copies of all posts, newest first.
func (g *Graph) Posts() []model.Post {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Post, 0, len(g.posts))
	for _, p := range g.posts {
		out = append(out, p.Clone())
	}
	return out
}

// CreatePost prepends a new post to the feed. Unknown authors are rejected.
func (g *Graph) CreatePost(authorID, content, imageURL string) (model.Post, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.charIndex[authorID]
	if !ok {
		return model.Post{}, false
	}
	p := model.Post{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		AuthorName: g.characters[i].Name,
		Content:    content,
		ImageURL:   imageURL,
		Reactions:  []model.Reaction{},
		Comments:   []*model.Comment{},
		CreatedAt:  g.now().UTC(),
	}
	g.posts = append([]model.Post{p}, g.posts...)
	return p.Clone(), true
}

// AddReaction applies toggle-or-replace semantics: a new kind replaces the
// author's existing reaction, the same kind removes it. Returns false when
// the post is unknown.
func (g *Graph) AddReaction(postID, authorID string, kind model.ReactionKind) bool {
	if !model.ValidReaction(kind) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.posts {
		if g.posts[i].ID != postID {
			continue
		}
		p := &g.posts[i]
		for j := range p.Reactions {
			if p.Reactions[j].AuthorID != authorID {
				continue
			}
			if p.Reactions[j].Kind == kind {
				p.Reactions = append(p.Reactions[:j], p.Reactions[j+1:]...)
			} else {
				p.Reactions[j].Kind = kind
			}
			return true
		}
		p.Reactions = append(p.Reactions, model.Reaction{ID: uuid.NewString(), AuthorID: authorID, Kind: kind})
		return true
	}
	return false
}

// HasCommented reports whether the author appears anywhere in the post's
// comment tree.
func (g *Graph) HasCommented(postID, authorID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.posts {
		if g.posts[i].ID == postID {
			return treeHasAuthor(g.posts[i].Comments, authorID)
		}
	}
	return false
}

// CreateGroup creates a group with the creator as its first member.
func (g *Graph) CreateGroup(creatorID, name, description string) (model.Group, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charIndex[creatorID]; !ok {
		return model.Group{}, false
	}
	gr := model.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		MemberIDs:   []string{creatorID},
	}
	g.groups = append(g.groups, gr)
	return gr.Clone(), true
}

// Group returns a copy of the group with the given ID.
func (g *Graph) Group(id string) (model.Group, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.groups {
		if g.groups[i].ID == id {
			return g.groups[i].Clone(), true
		}
	}
	return model.Group{}, false
}

// Groups returns copies of all groups in creation order.
func (g *Graph) Groups() []model.Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Group, 0, len(g.groups))
	for _, gr := range g.groups {
		out = append(out, gr.Clone())
	}
	return out
}

// JoinGroup adds the character to the group. No-op when the group is unknown
// or the character is already a member.
func (g *Graph) JoinGroup(groupID, characterID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charIndex[characterID]; !ok {
		return false
	}
	for i := range g.groups {
		if g.groups[i].ID != groupID {
			continue
		}
		for _, m := range g.groups[i].MemberIDs {
			if m == characterID {
				return false
			}
		}
		g.groups[i].MemberIDs = append(g.groups[i].MemberIDs, characterID)
		return true
	}
	return false
}

// IsGroupMember reports current membership.
func (g *Graph) IsGroupMember(groupID, characterID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.groups {
		if g.groups[i].ID != groupID {
			continue
		}
		for _, m := range g.groups[i].MemberIDs {
			if m == characterID {
				return true
			}
		}
	}
	return false
}

// AddCharacterEvent appends to the character's bounded recent-events log,
// keeping only the most recent entries.
func (g *Graph) AddCharacterEvent(characterID, event string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.charIndex[characterID]
	if !ok {
		return false
	}
	ev := append(g.characters[i].RecentEvents, event)
	if len(ev) > model.MaxRecentEvents {
		ev = ev[len(ev)-model.MaxRecentEvents:]
	}
	g.characters[i].RecentEvents = ev
	return true
}

// IncreaseAnger bumps the character's anger level by one. The ban flag flips
// when the level reaches the threshold and never flips back.
func (g *Graph) IncreaseAnger(characterID string) (newLevel int, becameBanned bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.charIndex[characterID]
	if !ok {
		return 0, false
	}
	c := &g.characters[i]
	c.AngerLevel++
	if c.AngerLevel >= model.BanThreshold && !c.IsBanned {
		c.IsBanned = true
		return c.AngerLevel, true
	}
	return c.AngerLevel, false
}
