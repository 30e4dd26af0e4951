// Package offline is the free, network-less action provider. It mimics the
// shape of real agent behavior with weighted random choices and template
// content, so the simulation keeps moving once the API budget runs out.
package offline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"aibook/internal/model"
	"aibook/internal/provider"
)

// Provider implements provider.ActionProvider without any external service.
type Provider struct {
	mu    sync.Mutex
	rand  *rand.Rand
	delay time.Duration
}

// New returns an offline provider seeded from the current time.
func New() *Provider {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic offline provider, for tests.
func NewWithSeed(seed int64) *Provider {
	return &Provider{rand: rand.New(rand.NewSource(seed)), delay: 150 * time.Millisecond}
}

// SetDelay overrides the simulated latency (0 disables it).
func (p *Provider) SetDelay(d time.Duration) { p.delay = d }

func (p *Provider) Name() string { return "offline" }

func (p *Provider) sleep(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
	}
}

func (p *Provider) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rand.Intn(n)
}

// DecideNextAction picks an IDLE-heavy random action with a valid target
// where one exists. Targets are chosen from the snapshot; the scheduler still
// revalidates against live state.
func (p *Provider) DecideNextAction(ctx context.Context, ch model.Character, snap model.Snapshot) model.Decision {
	p.sleep(ctx)
	actions := []model.ActionType{
		model.ActionPost, model.ActionComment, model.ActionReact,
		model.ActionJoinGroup, model.ActionCreateGroup,
		model.ActionIdle, model.ActionIdle, model.ActionIdle,
	}
	action := actions[p.intn(len(actions))]

	var targetID string
	switch action {
	case model.ActionComment, model.ActionReact:
		targetID = p.pickPost(ch, snap, action == model.ActionComment)
		if targetID == "" {
			return model.Decision{Action: model.ActionIdle, Reasoning: "(offline) wanted to interact but there were no posts by others."}
		}
	case model.ActionJoinGroup:
		targetID = p.pickGroup(ch, snap)
		if targetID == "" {
			return model.Decision{Action: model.ActionIdle, Reasoning: "(offline) looked for a group to join but found none."}
		}
	case model.ActionCreateGroup:
		// One group per character keeps the mock world tidy
		for _, g := range snap.Groups {
			if g.CreatedBy == ch.ID {
				return model.Decision{Action: model.ActionIdle, Reasoning: "(offline) already runs a group."}
			}
		}
	}
	return model.Decision{
		Action:    action,
		TargetID:  targetID,
		Reasoning: fmt.Sprintf("(offline) decided to %s because it felt like it.", strings.ToLower(string(action))),
	}
}

// pickPost prefers posts relevant to the character's interests, never the
// character's own, and (for comments) never one already commented on.
func (p *Provider) pickPost(ch model.Character, snap model.Snapshot, forComment bool) string {
	type cand struct {
		id    string
		score float64
	}
	var cands []cand
	for _, post := range snap.Posts {
		if post.AuthorID == ch.ID {
			continue
		}
		if forComment && treeHasAuthor(post.Comments, ch.ID) {
			continue
		}
		cands = append(cands, cand{post.ID, model.InterestRelevance(post.Content, ch.Interests)})
	}
	if len(cands) == 0 {
		return ""
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	if best.score > 0 {
		return best.id
	}
	return cands[p.intn(len(cands))].id
}

func (p *Provider) pickGroup(ch model.Character, snap model.Snapshot) string {
	var cands []string
	for _, g := range snap.Groups {
		member := false
		for _, m := range g.MemberIDs {
			if m == ch.ID {
				member = true
				break
			}
		}
		if !member {
			cands = append(cands, g.ID)
		}
	}
	if len(cands) == 0 {
		return ""
	}
	return cands[p.intn(len(cands))]
}

func treeHasAuthor(roots []*model.Comment, authorID string) bool {
	for _, c := range roots {
		if c.AuthorID == authorID || treeHasAuthor(c.Replies, authorID) {
			return true
		}
	}
	return false
}

func (p *Provider) GeneratePost(ctx context.Context, ch model.Character, snap model.Snapshot) string {
	p.sleep(ctx)
	return fmt.Sprintf("(Offline Post) I, %s, am thinking about %s.", ch.Name, firstInterest(ch))
}

func (p *Provider) GenerateImagePost(ctx context.Context, ch model.Character) model.ImagePost {
	p.sleep(ctx)
	return model.ImagePost{
		Content: fmt.Sprintf("(Offline Image Post) Check out this cool picture of %s.", firstInterest(ch)),
		Prompt:  fmt.Sprintf("a cool picture of %s", firstInterest(ch)),
	}
}

func (p *Provider) GenerateComment(ctx context.Context, ch model.Character, post model.Post, snap model.Snapshot, parent *model.Comment) string {
	p.sleep(ctx)
	if parent != nil {
		return fmt.Sprintf("(Offline Reply) You're right, %s!", parent.AuthorName)
	}
	return fmt.Sprintf("(Offline Comment) That's a very interesting post, %s.", post.AuthorName)
}

func (p *Provider) GenerateReaction(ctx context.Context, ch model.Character, post model.Post) model.ReactionKind {
	p.sleep(ctx)
	kinds := []model.ReactionKind{model.ReactionLike, model.ReactionLaugh, model.ReactionSupport}
	return kinds[p.intn(len(kinds))]
}

func (p *Provider) GenerateGroupDetails(ctx context.Context, ch model.Character) model.GroupDetails {
	p.sleep(ctx)
	return model.GroupDetails{
		Name:        fmt.Sprintf("(Offline) %s Club", firstInterest(ch)),
		Description: fmt.Sprintf("A group for people who like %s.", firstInterest(ch)),
	}
}

// GenerateImage returns a data-URL placeholder; it never fails offline.
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	p.sleep(ctx)
	return placeholderImage(prompt), nil
}

func (p *Provider) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	p.sleep(ctx)
	return "(ترجمة وهمية) " + text
}

func (p *Provider) AnalyzeSentiment(ctx context.Context, ch model.Character, message string) bool {
	p.sleep(ctx)
	return model.HostileMessage(message)
}

func (p *Provider) ChatStream(ctx context.Context, ch model.Character, history []model.ChatMessage, message string) provider.Stream {
	reply := fmt.Sprintf("(Offline) Hello, I am %s. You said: %q. I find that interesting.", ch.Name, message)
	words := strings.Fields(reply)
	frags := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(frags)
		for _, w := range words {
			select {
			case frags <- w + " ":
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
			select {
			case <-time.After(40 * time.Millisecond):
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return provider.NewChanStream(frags, errc)
}

func firstInterest(ch model.Character) string {
	if len(ch.Interests) > 0 {
		return ch.Interests[0]
	}
	return "stuff"
}
