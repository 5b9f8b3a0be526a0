// Package coach holds the live-coaching orchestration: the conversational
// state machine that owns the cooking context and the scheduler that feeds
// it vision results.
package coach

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/models"
)

const (
	maxMessages        = 20
	maxAnalysisHistory = 10
	maxContextGuidance = 3
)

// PlaybackStopper is the one capability the session needs from the
// playback controller: immediate interruption for barge-in.
type PlaybackStopper interface {
	Stop()
}

// Session is the conversational state machine. It owns the current step,
// the turn flags, the message log and the cooking context; everything else
// reads snapshots or hands it deltas. All methods are called from the
// single-threaded update loop.
type Session struct {
	recipe  *models.Recipe
	stepIdx int

	// voice is the exclusive floor: idle, speaking or listening. The
	// remote-work flags below may overlap with any voice state.
	voice             models.TurnState
	analyzing         bool
	processingCommand bool

	messages     []models.Message
	history      []models.Analysis
	ingredients  []string
	lastAnalysis *models.Analysis

	player PlaybackStopper
	logger *zap.Logger
	now    func() time.Time
}

// NewSession creates a session positioned at the recipe's first step.
func NewSession(recipe *models.Recipe, player PlaybackStopper, logger *zap.Logger) *Session {
	return &Session{
		recipe: recipe,
		voice:  models.TurnIdle,
		player: player,
		logger: logger.With(zap.String("component", "coach")),
		now:    time.Now,
	}
}

// Recipe returns the recipe being cooked.
func (s *Session) Recipe() *models.Recipe {
	return s.recipe
}

// CurrentStep returns the active cooking step.
func (s *Session) CurrentStep() models.CookingStep {
	if len(s.recipe.Steps) == 0 {
		return models.CookingStep{}
	}
	return s.recipe.Steps[s.stepIdx]
}

// StepIndex returns the current step index.
func (s *Session) StepIndex() int {
	return s.stepIdx
}

// StepCount returns the number of recipe steps.
func (s *Session) StepCount() int {
	return len(s.recipe.Steps)
}

// AdvanceStep moves to the next step. At the last step it is a no-op and
// appends nothing. On success it appends the new instruction as an
// assistant message and returns its text for optional playback.
func (s *Session) AdvanceStep() (string, bool) {
	if s.stepIdx >= len(s.recipe.Steps)-1 {
		return "", false
	}
	s.stepIdx++
	text := s.recipe.Steps[s.stepIdx].Text
	s.append(models.RoleAssistant, text)
	s.logger.Info("advanced step", zap.Int("step", s.stepIdx))
	return text, true
}

// RetreatStep moves to the previous step, clamping at the first.
func (s *Session) RetreatStep() (string, bool) {
	if s.stepIdx <= 0 {
		return "", false
	}
	s.stepIdx--
	text := s.recipe.Steps[s.stepIdx].Text
	s.append(models.RoleAssistant, text)
	s.logger.Info("retreated step", zap.Int("step", s.stepIdx))
	return text, true
}

// BeginListening claims the floor for the user. Any in-progress playback
// is canceled in the same synchronous step, so Speaking is already false
// by the time Listening is observable (barge-in).
func (s *Session) BeginListening() {
	s.player.Stop()
	s.voice = models.TurnListening
}

// EndListening releases the floor after a recording finishes or is
// discarded.
func (s *Session) EndListening() {
	if s.voice == models.TurnListening {
		s.voice = models.TurnIdle
	}
}

// BeginSpeaking claims the floor for playback. Returns false while
// Listening: the user's live speech takes priority and a response that
// became stale is dropped, never queued.
func (s *Session) BeginSpeaking() bool {
	if s.voice == models.TurnListening {
		s.logger.Info("playback dropped while listening")
		return false
	}
	s.voice = models.TurnSpeaking
	return true
}

// EndSpeaking releases the floor when playback ends, is stopped or fails.
// A barge-in may already have moved the floor to Listening; that state is
// preserved.
func (s *Session) EndSpeaking() {
	if s.voice == models.TurnSpeaking {
		s.voice = models.TurnIdle
	}
}

// Listening reports whether the user holds the floor.
func (s *Session) Listening() bool {
	return s.voice == models.TurnListening
}

// Speaking reports whether playback holds the floor.
func (s *Session) Speaking() bool {
	return s.voice == models.TurnSpeaking
}

// SetAnalyzing tracks an outstanding frame-analysis request.
func (s *Session) SetAnalyzing(v bool) {
	s.analyzing = v
}

// SetProcessingCommand tracks the remote voice pipeline, from the moment a
// recording is dispatched for transcription until the command response
// arrives. While set, the voice activity detector is told not to start new
// speech.
func (s *Session) SetProcessingCommand(v bool) {
	s.processingCommand = v
}

// ProcessingCommand reports whether a voice command is in flight.
func (s *Session) ProcessingCommand() bool {
	return s.processingCommand
}

// Turn reduces the session's state to a single display value, preferring
// the voice states over the background work states.
func (s *Session) Turn() models.TurnState {
	switch {
	case s.voice != models.TurnIdle:
		return s.voice
	case s.processingCommand:
		return models.TurnProcessingCommand
	case s.analyzing:
		return models.TurnAnalyzing
	default:
		return models.TurnIdle
	}
}

// AppendUser records the user's transcribed speech in the log.
func (s *Session) AppendUser(text string) {
	s.append(models.RoleUser, text)
}

// AppendAssistant records an assistant utterance in the log.
func (s *Session) AppendAssistant(text string) {
	s.append(models.RoleAssistant, text)
}

// Messages returns the retained log, oldest first.
func (s *Session) Messages() []models.Message {
	return s.messages
}

// Recent returns the newest n messages, oldest first.
func (s *Session) Recent(n int) []models.Message {
	if len(s.messages) <= n {
		return s.messages
	}
	return s.messages[len(s.messages)-n:]
}

// DetectedIngredients returns the latest detected-ingredient snapshot.
func (s *Session) DetectedIngredients() []string {
	return s.ingredients
}

// ApplyAnalysis merges one vision result into the cooking context and
// returns the text to speak, if any. Detected ingredients replace the
// prior list; the latest view wins.
func (s *Session) ApplyAnalysis(resp *api.AnalyzeResponse) string {
	a := models.Analysis{
		DetectedIngredients: resp.DetectedIngredients,
		DetectedItems:       resp.DetectedItems,
		CurrentAction:       resp.CurrentAction,
		Guidance:            resp.Guidance,
		Warning:             resp.Warning,
		Tip:                 resp.Tip,
		TimingAdvice:        resp.TimingAdvice,
		StepComplete:        resp.StepCompleteSuggestion,
		At:                  s.now(),
	}

	if detected := a.DetectedIngredients; len(detected) > 0 {
		s.ingredients = detected
	} else if len(a.DetectedItems) > 0 {
		s.ingredients = a.DetectedItems
	}

	s.history = append(s.history, a)
	if len(s.history) > maxAnalysisHistory {
		s.history = s.history[len(s.history)-maxAnalysisHistory:]
	}
	s.lastAnalysis = &s.history[len(s.history)-1]

	if a.Guidance != "" {
		s.append(models.RoleAssistant, a.Guidance)
	}
	if a.Warning != "" {
		s.append(models.RoleWarning, a.Warning)
	}
	if a.Tip != "" {
		s.append(models.RoleAssistant, "Tip: "+a.Tip)
	}
	if a.StepComplete {
		s.append(models.RoleAssistant, "This step looks done. Say \"next step\" when you're ready.")
	}

	if resp.Speak && a.Guidance != "" {
		return a.Guidance
	}
	return ""
}

// LastAnalysis returns the most recent vision result, or nil.
func (s *Session) LastAnalysis() *models.Analysis {
	return s.lastAnalysis
}

// BuildAnalyzeRequest snapshots the cooking context for one frame-analysis
// call; the frame itself is filled in by the scheduler once grabbed. Prior
// context carries the latest ingredient view plus a short rolling window
// of recent guidance.
func (s *Session) BuildAnalyzeRequest() api.AnalyzeRequest {
	var recent []string
	for i := len(s.history) - 1; i >= 0 && len(recent) < maxContextGuidance; i-- {
		if g := s.history[i].Guidance; g != "" {
			recent = append(recent, g)
		}
	}

	return api.AnalyzeRequest{
		RecipeName:         s.recipe.Name,
		CurrentStep:        s.stepIdx + 1,
		CurrentInstruction: s.CurrentStep().Text,
		PreviousContext: api.PriorContext{
			DetectedIngredients: s.ingredients,
			RecentGuidance:      recent,
		},
		DetectedIngredients: s.ingredients,
	}
}

// BuildCommandRequest snapshots the cooking context for a voice command.
func (s *Session) BuildCommandRequest(command string) api.VoiceCommandRequest {
	req := api.VoiceCommandRequest{
		Command:             command,
		RecipeName:          s.recipe.Name,
		CurrentStep:         s.stepIdx + 1,
		CurrentInstruction:  s.CurrentStep().Text,
		DetectedIngredients: s.ingredients,
	}
	if s.lastAnalysis != nil {
		req.LastAnalysis = &api.LastAnalysis{
			CurrentAction: s.lastAnalysis.CurrentAction,
			TimingAdvice:  s.lastAnalysis.TimingAdvice,
		}
	}
	return req
}

// HandleCommandResult applies a voice-command response: logs the reply,
// executes any step action, and returns the texts to speak. The step
// action is honored independently of the free-text response.
func (s *Session) HandleCommandResult(resp *api.VoiceCommandResponse) (speak []string) {
	if reply := strings.TrimSpace(resp.Response); reply != "" {
		s.append(models.RoleAssistant, reply)
		speak = append(speak, reply)
	}
	if info := strings.TrimSpace(resp.AdditionalInfo); info != "" {
		s.append(models.RoleAssistant, info)
		speak = append(speak, info)
	}

	switch resp.Action {
	case api.ActionNextStep:
		if text, ok := s.AdvanceStep(); ok {
			speak = append(speak, text)
		}
	case api.ActionPrevStep:
		if text, ok := s.RetreatStep(); ok {
			speak = append(speak, text)
		}
	}
	return speak
}

// ViableTranscript reports whether recognized text is worth dispatching.
// Empty or whitespace-only transcripts are discarded silently.
func ViableTranscript(text string) bool {
	return strings.TrimSpace(text) != ""
}

func (s *Session) append(role models.Role, content string) {
	s.messages = append(s.messages, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
}
