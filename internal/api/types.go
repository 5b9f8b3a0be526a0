package api

// Wire types for the Chef Pantry backend. Field names follow the backend's
// JSON contract exactly.

// PriorContext is the rolling context sent with each frame analysis.
type PriorContext struct {
	DetectedIngredients []string `json:"detectedIngredients,omitempty"`
	RecentGuidance      []string `json:"recentGuidance,omitempty"`
}

// AnalyzeRequest asks the vision endpoint to interpret one camera frame.
type AnalyzeRequest struct {
	ImageBase64         string       `json:"image_base64"`
	RecipeName          string       `json:"recipe_name"`
	CurrentStep         int          `json:"current_step"`
	CurrentInstruction  string       `json:"current_instruction"`
	PreviousContext     PriorContext `json:"previous_context"`
	DetectedIngredients []string     `json:"detected_ingredients"`
}

// AnalyzeResponse is the vision endpoint's interpretation of a frame.
type AnalyzeResponse struct {
	Success                bool     `json:"success"`
	DetectedIngredients    []string `json:"detected_ingredients"`
	DetectedItems          []string `json:"detected_items"`
	CurrentAction          string   `json:"current_action"`
	Guidance               string   `json:"guidance"`
	Speak                  bool     `json:"speak"`
	Warning                string   `json:"warning"`
	Tip                    string   `json:"tip"`
	StepCompleteSuggestion bool     `json:"step_complete_suggestion"`
	NextStepPreview        string   `json:"next_step_preview"`
	TimingAdvice           string   `json:"timing_advice"`
	IngredientAmounts      string   `json:"ingredient_amounts"`
	Error                  string   `json:"error"`
}

// LastAnalysis is the analysis summary attached to a voice command.
type LastAnalysis struct {
	CurrentAction string `json:"current_action,omitempty"`
	TimingAdvice  string `json:"timing_advice,omitempty"`
}

// VoiceCommandRequest routes a transcribed command with cooking context.
type VoiceCommandRequest struct {
	Command             string        `json:"command"`
	RecipeName          string        `json:"recipe_name"`
	CurrentStep         int           `json:"current_step"`
	CurrentInstruction  string        `json:"current_instruction"`
	DetectedIngredients []string      `json:"detected_ingredients"`
	LastAnalysis        *LastAnalysis `json:"last_analysis,omitempty"`
}

// Step navigation actions the command endpoint may return.
const (
	ActionNextStep = "next_step"
	ActionPrevStep = "prev_step"
)

// VoiceCommandResponse is the assistant's reply to a voice command.
type VoiceCommandResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	Action         string `json:"action"`
	AdditionalInfo string `json:"additional_info"`
	Error          string `json:"error"`
}

// TranscribeResponse carries the recognized speech text.
type TranscribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error"`
}

// SpeakRequest asks for synthesized speech.
type SpeakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// SpeakResponse carries base64-encoded playable audio.
type SpeakResponse struct {
	Success     bool   `json:"success"`
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
	Error       string `json:"error"`
}

// recipeIngredient is one ingredient of a backend recipe.
type recipeIngredient struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// recipeResponse is the backend's full recipe shape; only the fields the
// live coach needs are decoded.
type recipeResponse struct {
	ID           int                `json:"id"`
	Name         string             `json:"name"`
	Instructions string             `json:"instructions"`
	Ingredients  []recipeIngredient `json:"ingredients"`
}
