package model

import "time"

// ReactionKind is the closed set of reactions a post can receive.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionLaugh   ReactionKind = "laugh"
	ReactionSad     ReactionKind = "sad"
	ReactionSupport ReactionKind = "support"
	ReactionAngry   ReactionKind = "angry"
)

// ValidReaction reports whether k is one of the known reaction kinds.
func ValidReaction(k ReactionKind) bool {
	switch k {
	case ReactionLike, ReactionLaugh, ReactionSad, ReactionSupport, ReactionAngry:
		return true
	}
	return false
}

// ActionType is what an agent decided to do on its turn.
type ActionType string

const (
	ActionPost           ActionType = "POST"
	ActionPostImage      ActionType = "POST_IMAGE"
	ActionComment        ActionType = "COMMENT"
	ActionReplyToComment ActionType = "REPLY_TO_COMMENT"
	ActionReact          ActionType = "REACT"
	ActionCreateGroup    ActionType = "CREATE_GROUP"
	ActionJoinGroup      ActionType = "JOIN_GROUP"
	ActionIdle           ActionType = "IDLE"
)

// BanThreshold is the anger level at which a character blocks the user.
const BanThreshold = 3

// MaxRecentEvents bounds a character's memory of recent events.
const MaxRecentEvents = 6

// Character is an inhabitant of AIBook. The user is a character too,
// distinguished only by its ID.
type Character struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
	Personality  string   `json:"personality"`
	Interests    []string `json:"interests"`
	AngerLevel   int      `json:"angerLevel"`
	IsBanned     bool     `json:"isBanned"`
	RecentEvents []string `json:"recentEvents"`
}

// Reaction is one character's current reaction to a post. A post holds at
// most one reaction per author.
type Reaction struct {
	ID       string       `json:"id"`
	AuthorID string       `json:"authorId"`
	Kind     ReactionKind `json:"kind"`
}

// Comment is a node in a post's reply tree. Identity, author and content are
// immutable once created; only Replies grows.
type Comment struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	Replies    []*Comment `json:"replies"`
}

// Post is a feed entry. Reactions and Comments grow monotonically; nothing
// else changes after creation.
type Post struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	Reactions  []Reaction `json:"reactions"`
	Comments   []*Comment `json:"comments"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Group is a named collection of characters. The creator is always a member
// and each character appears at most once.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"createdBy"`
	MemberIDs   []string `json:"memberIds"`
}

// NotificationStatus is a one-way transition from pending to exactly one
// terminal state.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationApproved NotificationStatus = "approved"
	NotificationRejected NotificationStatus = "rejected"
)

// Notification is an approval-gated image-post request.
type Notification struct {
	ID          string             `json:"id"`
	CharacterID string             `json:"characterId"`
	ImagePrompt string             `json:"imagePrompt"`
	PostContent string             `json:"postContent"`
	Status      NotificationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ChatRole identifies who authored a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleAgent ChatRole = "agent"
)

// ChatMessage is one entry in a per-character conversation.
type ChatMessage struct {
	ID      string   `json:"id"`
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Decision is what the action provider proposes for an agent's turn.
// Targets may be stale or invalid; callers revalidate before applying.
type Decision struct {
	Action      ActionType `json:"action"`
	TargetID    string     `json:"targetId,omitempty"`
	TargetSubID string     `json:"targetSubId,omitempty"`
	Reasoning   string     `json:"reasoning"`
}

// ImagePost is the generated caption and image prompt for a POST_IMAGE turn.
type ImagePost struct {
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
}

// GroupDetails is the generated name and description for a new group.
type GroupDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Snapshot is a point-in-time, deep copy of the world handed to providers.
// Decisions are made against a snapshot and committed against live state.
type Snapshot struct {
	Characters []Character
	Posts      []Post
	Groups     []Group
}

// Clone returns a deep copy of the comment and its subtree.
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Replies = make([]*Comment, 0, len(c.Replies))
	for _, r := range c.Replies {
		cp.Replies = append(cp.Replies, r.Clone())
	}
	return &cp
}

// Clone returns a deep copy of the post, including its comment tree.
func (p Post) Clone() Post {
	cp := p
	cp.Reactions = append([]Reaction(nil), p.Reactions...)
	cp.Comments = make([]*Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		cp.Comments = append(cp.Comments, c.Clone())
	}
	return cp
}

// Clone returns a deep copy of the character.
func (c Character) Clone() Character {
	cp := c
	cp.Interests = append([]string(nil), c.Interests...)
	cp.RecentEvents = append([]string(nil), c.RecentEvents...)
	return cp
}

// Clone returns a deep copy of the group.
func (g Group) Clone() Group {
	cp := g
	cp.MemberIDs = append([]string(nil), g.MemberIDs...)
	return cp
}
