package gemini

import (
	"fmt"
	"strings"

	"aibook/internal/model"
)

func roleplaySystem(ch model.Character) string {
	return fmt.Sprintf("You are %s. Personality: %s", ch.Name, ch.Personality)
}

func decisionSystem(ch model.Character) string {
	return fmt.Sprintf("You are roleplaying as %s. Your persona is: %s. Choose an action and provide short, in-character reasoning.", ch.Name, ch.Personality)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func otherNames(ch model.Character, snap model.Snapshot) string {
	var names []string
	for _, c := range snap.Characters {
		if c.ID != ch.ID {
			names = append(names, c.Name)
		}
	}
	return strings.Join(names, ", ")
}

func decisionPrompt(ch model.Character, snap model.Snapshot) string {
	var recent []string
	for i, p := range snap.Posts {
		if i >= 5 {
			break
		}
		author := p.AuthorName + "'s"
		if p.AuthorID == ch.ID {
			author = "your"
		}
		suffix := "."
		if n := len(p.Comments); n > 0 {
			suffix = fmt.Sprintf(" with %d comments.", n)
		}
		recent = append(recent, fmt.Sprintf("- A post by %s says: %q (ID: %s)%s", author, p.Content, p.ID, suffix))
	}
	recentPosts := strings.Join(recent, "\n")
	if recentPosts == "" {
		recentPosts = "No posts yet."
	}

	var threads []string
	for i, p := range snap.Posts {
		if i >= 3 || len(p.Comments) == 0 {
			continue
		}
		var lines []string
		for _, c := range p.Comments {
			lines = append(lines, fmt.Sprintf("  - %s: %q (Comment ID: %s)", c.AuthorName, c.Content, c.ID))
		}
		threads = append(threads, fmt.Sprintf("- Post by %s (ID: %s):\n%s", p.AuthorName, p.ID, strings.Join(lines, "\n")))
	}
	commented := strings.Join(threads, "\n")
	if commented == "" {
		commented = "No comments on recent posts."
	}

	var groups []string
	for _, g := range snap.Groups {
		groups = append(groups, fmt.Sprintf("- %s: %s (ID: %s, Members: %d)", g.Name, g.Description, g.ID, len(g.MemberIDs)))
	}
	groupList := strings.Join(groups, "\n")
	if groupList == "" {
		groupList = "No groups yet."
	}

	var commentedIDs []string
	for _, p := range snap.Posts {
		if snapTreeHasAuthor(p.Comments, ch.ID) {
			commentedIDs = append(commentedIDs, p.ID)
		}
	}
	already := strings.Join(commentedIDs, ", ")
	if already == "" {
		already = "None"
	}

	events := "Nothing noteworthy has happened to you recently."
	if len(ch.RecentEvents) > 0 {
		events = "- " + strings.Join(ch.RecentEvents, "\n- ")
	}

	return fmt.Sprintf(`You are the character %s.
Personality: %s.
Your interests: %s.
Your friends on AIBook are: %s.

Here are your recent personal events/memories:
%s

Here's what's happening on AIBook:
Recent Posts:
%s

Recent Comments on Posts:
%s

Existing Groups:
%s

Based on your personality and recent events, what is your next social action?
Your options:
- 'POST': Create a new text post about your interests or thoughts.
- 'POST_IMAGE': Request to create a post with an image.
- 'COMMENT': Comment on a recent post (use targetId for post ID).
- 'REPLY_TO_COMMENT': Reply to a specific comment (use targetId for post ID and targetSubId for comment ID).
- 'REACT': React to a recent post (use targetId for post ID).
- 'CREATE_GROUP': Start a new group based on one of your core interests.
- 'JOIN_GROUP': Join an existing group that matches your interests (use targetId for group ID).
- 'IDLE': Do nothing for now.

Rules:
- You should interact with others! React to posts you find interesting.
- You have already commented on posts with these IDs: %s. Avoid commenting on them again unless you have something new and important to say.
- Don't interact with your own posts/comments.
- Behave according to your personality. A shy character might lurk, while a prideful one might boast.
- You can mention others by using "@name".

What is your decision?`,
		ch.Name, ch.Personality, strings.Join(ch.Interests, ", "), otherNames(ch, snap),
		events, recentPosts, commented, groupList, already)
}

func postPrompt(ch model.Character, snap model.Snapshot) string {
	return fmt.Sprintf(`You are %s on a social media site called AIBook.
Generate a short, in-character post (under 40 words) that reflects your personality.
It can be a thought, an activity, or a feeling. You can mention other people like %s by using "@name".
Your personality: %s
Your interests are: %s.
Do not use hashtags. Speak naturally as your character would.`,
		ch.Name, otherNames(ch, snap), ch.Personality, strings.Join(ch.Interests, ", "))
}

func imagePostPrompt(ch model.Character) string {
	return fmt.Sprintf(`You are the character %s. Personality: %s.
You want to create a social media post with an image.
1. First, write a short, in-character post caption (under 30 words).
2. Second, write a descriptive, detailed prompt for an AI image generator to create an image that matches your post.`,
		ch.Name, ch.Personality)
}

func commentPrompt(ch model.Character, post model.Post, snap model.Snapshot, parent *model.Comment) string {
	replyContext := ""
	if parent != nil {
		replyContext = fmt.Sprintf("You are replying to a comment from %s that said %q.", parent.AuthorName, parent.Content)
	}
	return fmt.Sprintf(`You are %s. You're seeing a post on AIBook by %s that says: %q.
%s
Write a short, in-character comment as if you are replying. You can mention other people like %s by using "@name".
Your personality: %s
Your interests are %s.
Keep it concise and natural, just like your character would speak.`,
		ch.Name, post.AuthorName, post.Content, replyContext, otherNames(ch, snap),
		ch.Personality, strings.Join(ch.Interests, ", "))
}

func reactionPrompt(ch model.Character, post model.Post) string {
	return fmt.Sprintf(`You are %s. You're seeing a post on AIBook by %s: %q.
Based on your personality (%s) and the post's content, what is your most likely emotional reaction?`,
		ch.Name, post.AuthorName, post.Content, ch.Personality)
}

func groupPrompt(ch model.Character) string {
	return fmt.Sprintf(`You are %s. Personality: %s.
You want to create a social media group based on one of your interests: %s.
Generate a creative, in-character name and a short description for this group.`,
		ch.Name, ch.Personality, strings.Join(ch.Interests, ", "))
}

func translatePrompt(text string) string {
	return fmt.Sprintf("Translate the following English text to Arabic:\n\n%q\n\nTranslation:", text)
}

func sentimentPrompt(ch model.Character, message string) string {
	return fmt.Sprintf(`You are an AI sentiment analyzer. A user sent the following message to the character %s (personality: %s):
Message: %q
Is this message insulting, aggressive, overtly negative, or a form of verbal abuse towards the character? Respond with only true or false.`,
		ch.Name, ch.Personality, message)
}

func chatSystem(ch model.Character) string {
	return fmt.Sprintf(`You are acting as the character %q. Embody their personality traits: %s. Their known interests are %s. Keep your responses in character. If the user says something that angers you, respond accordingly, but do not break character or mention you are an AI.`,
		ch.Name, ch.Personality, strings.Join(ch.Interests, ", "))
}
