package domain

// Pipeline bounds.
const (
	// MaxRetries caps how many times the Evaluator may send the fan-out back for regeneration.
	MaxRetries = 3

	// MaxRecentEvents is the size of the WorldState event window.
	MaxRecentEvents = 10

	// EventSummaryLimit is the rune budget for a rule-based event summary.
	EventSummaryLimit = 50

	// HistoryWindow is how many trailing history entries (or recent events) a stage looks at.
	HistoryWindow = 5
)

// NoRepliesSentinel is the final output of a turn in which no character replied.
const NoRepliesSentinel = "(no replies)"

// Roles accepted in a RawMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StageName identifies one node of the fixed orchestration sequence.
// It doubles as the prompt template identifier for that stage.
type StageName string

const (
	StageParser    StageName = "parser"
	StageNarrator  StageName = "narrator"
	StageDirector  StageName = "director"
	StagePersona   StageName = "persona"
	StageEvaluator StageName = "evaluator"
	StageComposer  StageName = "composer"
)
