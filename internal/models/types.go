package models

import (
	"strings"
	"time"
)

// TurnState identifies which component currently holds the conversational
// floor. Speaking and Listening are mutually exclusive; the analysis and
// command states describe outstanding remote work and may overlap with
// either voice state.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnSpeaking
	TurnListening
	TurnAnalyzing
	TurnProcessingCommand
)

func (t TurnState) String() string {
	switch t {
	case TurnIdle:
		return "idle"
	case TurnSpeaking:
		return "speaking"
	case TurnListening:
		return "listening"
	case TurnAnalyzing:
		return "analyzing"
	case TurnProcessingCommand:
		return "thinking"
	default:
		return "unknown"
	}
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleWarning   Role = "warning"
)

// Message is a single entry in the coaching conversation log.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// CookingStep is one instruction of a recipe.
type CookingStep struct {
	Index int
	Text  string
}

// Ingredient is a recipe ingredient with an optional category.
type Ingredient struct {
	Name     string
	Category string
}

// Recipe is the cooking-relevant view of a backend recipe.
type Recipe struct {
	ID          int
	Name        string
	Steps       []CookingStep
	Ingredients []Ingredient
}

// SplitInstructions turns the backend's newline-delimited instruction text
// into ordered steps, dropping blank lines.
func SplitInstructions(instructions string) []CookingStep {
	var steps []CookingStep
	for _, line := range strings.Split(instructions, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		steps = append(steps, CookingStep{Index: len(steps), Text: text})
	}
	return steps
}

// RecordingArtifact is the result of a completed recording session.
type RecordingArtifact struct {
	ID        string
	Bytes     []byte
	MimeType  string
	Duration  time.Duration
	StartedAt time.Time
}

// Viable reports whether the artifact is worth transcribing. Both gates are
// required: a loud transient passes the size check but not the duration
// check, and an open mic with no speech can pass duration but not size.
func (a *RecordingArtifact) Viable(minBytes int, minDuration time.Duration) bool {
	if a == nil {
		return false
	}
	return len(a.Bytes) >= minBytes && a.Duration >= minDuration
}

// Analysis is the client-side record of one vision analysis response.
type Analysis struct {
	DetectedIngredients []string
	DetectedItems       []string
	CurrentAction       string
	Guidance            string
	Warning             string
	Tip                 string
	TimingAdvice        string
	StepComplete        bool
	At                  time.Time
}
