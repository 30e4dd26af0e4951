package gemini

import (
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/genai"

	"aibook/internal/logging"
	"aibook/internal/model"
	"aibook/internal/provider"
)

// The model is asked for structured output, but its JSON is still untrusted:
// every payload is checked against a schema before it reaches the dispatcher.

const decisionSchemaJSON = `{
  "type": "object",
  "required": ["action", "reasoning"],
  "properties": {
    "action": {
      "type": "string",
      "enum": ["POST", "POST_IMAGE", "COMMENT", "REPLY_TO_COMMENT", "REACT", "CREATE_GROUP", "JOIN_GROUP", "IDLE"]
    },
    "targetId": {"type": "string"},
    "targetSubId": {"type": "string"},
    "reasoning": {"type": "string"}
  }
}`

const imagePostSchemaJSON = `{
  "type": "object",
  "required": ["content", "prompt"],
  "properties": {
    "content": {"type": "string"},
    "prompt": {"type": "string"}
  }
}`

const reactionSchemaJSON = `{
  "type": "object",
  "required": ["reaction"],
  "properties": {
    "reaction": {"type": "string", "enum": ["like", "laugh", "sad", "support", "angry"]}
  }
}`

const groupSchemaJSON = `{
  "type": "object",
  "required": ["name", "description"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"}
  }
}`

var (
	decisionValidator  = jsonschema.MustCompileString("decision.json", decisionSchemaJSON)
	imagePostValidator = jsonschema.MustCompileString("image_post.json", imagePostSchemaJSON)
	reactionValidator  = jsonschema.MustCompileString("reaction.json", reactionSchemaJSON)
	groupValidator     = jsonschema.MustCompileString("group.json", groupSchemaJSON)
)

func decisionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"action": {
				Type: genai.TypeString,
				Enum: []string{"POST", "POST_IMAGE", "COMMENT", "REPLY_TO_COMMENT", "REACT", "CREATE_GROUP", "JOIN_GROUP", "IDLE"},
			},
			"targetId":    {Type: genai.TypeString, Description: "ID of the post or group to interact with."},
			"targetSubId": {Type: genai.TypeString, Description: "ID of the comment to reply to."},
			"reasoning":   {Type: genai.TypeString, Description: "Brief, in-character reasoning for the decision."},
		},
	}
}

func imagePostSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"content": {Type: genai.TypeString, Description: "The social media post caption."},
			"prompt":  {Type: genai.TypeString, Description: "The detailed prompt for the image generator."},
		},
	}
}

func reactionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"reaction": {
				Type: genai.TypeString,
				Enum: []string{"like", "laugh", "sad", "support", "angry"},
			},
		},
	}
}

func groupSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        {Type: genai.TypeString, Description: "The name of the group. Short and catchy."},
			"description": {Type: genai.TypeString, Description: "A one-sentence description of the group."},
		},
	}
}

// generateJSON runs a structured-output call, validates the payload against
// schema, and unmarshals it into out. Returns false on any failure.
func (p *Provider) generateJSON(ctx context.Context, kind, prompt, system string, respSchema *genai.Schema, validator *jsonschema.Schema, out any) bool {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    respSchema,
		ThinkingConfig:    noThinking(),
	}
	raw, err := p.generate(ctx, kind, prompt, cfg)
	if err != nil {
		logging.Error("gemini_call_failed", map[string]any{"kind": kind, "error": err.Error()})
		return false
	}
	raw = stripFences(raw)
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logging.Error("gemini_bad_json", map[string]any{"kind": kind, "error": err.Error()})
		return false
	}
	if err := validator.Validate(decoded); err != nil {
		logging.Error("gemini_schema_violation", map[string]any{"kind": kind, "error": err.Error()})
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// DecideNextAction asks the model for a structured decision and applies the
// same local sanity checks the prompt asks for: no self-interaction, no
// duplicate comments, no re-joining groups. Anything off downgrades to IDLE.
// The scheduler revalidates against live state regardless.
func (p *Provider) DecideNextAction(ctx context.Context, ch model.Character, snap model.Snapshot) model.Decision {
	var d model.Decision
	if !p.generateJSON(ctx, "decision", decisionPrompt(ch, snap), decisionSystem(ch), decisionSchema(), decisionValidator, &d) {
		return provider.IdleDecision()
	}

	switch d.Action {
	case model.ActionComment, model.ActionReact:
		post, ok := findPost(snap, d.TargetID)
		if !ok || post.AuthorID == ch.ID {
			return model.Decision{Action: model.ActionIdle, Reasoning: "changed their mind about a post."}
		}
		if d.Action == model.ActionComment && snapTreeHasAuthor(post.Comments, ch.ID) {
			return model.Decision{Action: model.ActionIdle, Reasoning: "realized they already commented here."}
		}
	case model.ActionJoinGroup:
		for _, g := range snap.Groups {
			if g.ID != d.TargetID {
				continue
			}
			for _, m := range g.MemberIDs {
				if m == ch.ID {
					return model.Decision{Action: model.ActionIdle, Reasoning: "realized they were already in that group."}
				}
			}
			return d
		}
		return model.Decision{Action: model.ActionIdle, Reasoning: "realized that group did not exist."}
	}
	return d
}

func findPost(snap model.Snapshot, id string) (model.Post, bool) {
	for _, p := range snap.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return model.Post{}, false
}

func snapTreeHasAuthor(roots []*model.Comment, authorID string) bool {
	for _, c := range roots {
		if c.AuthorID == authorID || snapTreeHasAuthor(c.Replies, authorID) {
			return true
		}
	}
	return false
}
