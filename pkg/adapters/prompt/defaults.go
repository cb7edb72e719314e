package prompt

import "github.com/aretw0/troupe/pkg/domain"

// Defaults returns the built-in templates for every model-capable stage.
func Defaults() []Template {
	return []Template{
		{
			ID: string(domain.StageNarrator),
			Body: `Character settings:
{{character_settings}}

Recent conversation:
{{chat_history}}

Latest user input:
{{user_input}}

Current world state:
{{world_state}}

Return the complete updated world state as one JSON object. Keep characters that are still
relevant, mark who is present in the scene, and add a short entry to recent_events.`,
		},
		{
			ID: string(domain.StageDirector),
			Body: `World state:
{{world_state}}

Present characters: {{present_characters}}

User input:
{{user_input}}

Which of the present characters should act now? Answer with a JSON array of names.`,
		},
		{
			ID: string(domain.StagePersona),
			Body: `You are {{character_name}}, a character in an ongoing story.

Style:
{{style}}

Constraints:
{{constraints}}`,
		},
		{
			ID: string(domain.StageComposer),
			Body: `Scene: {{scene}}
Time: {{time}}

Character replies:
{{transcript}}

Fuse the replies above into one passage, in order, without inventing new dialogue.`,
		},
	}
}
