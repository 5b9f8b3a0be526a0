package coach

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/models"
)

type fakePlayer struct {
	stops int
}

func (p *fakePlayer) Stop() { p.stops++ }

func threeStepRecipe() *models.Recipe {
	return &models.Recipe{
		ID:    1,
		Name:  "French Onion Soup",
		Steps: models.SplitInstructions("Chop onions\nSauté onions\nAdd garlic"),
	}
}

func newTestSession() (*Session, *fakePlayer) {
	p := &fakePlayer{}
	return NewSession(threeStepRecipe(), p, zap.NewNop()), p
}

func TestAdvanceAppendsExactlyOneMessage(t *testing.T) {
	s, _ := newTestSession()

	text, ok := s.AdvanceStep()
	require.True(t, ok)
	assert.Equal(t, "Sauté onions", text)
	assert.Equal(t, 1, s.StepIndex())

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, models.RoleAssistant, s.Messages()[0].Role)
	assert.Contains(t, s.Messages()[0].Content, "Sauté onions")
}

func TestStepNavigationClampsAtBounds(t *testing.T) {
	s, _ := newTestSession()

	// Retreat at the first step is a no-op with no message.
	_, ok := s.RetreatStep()
	assert.False(t, ok)
	assert.Equal(t, 0, s.StepIndex())
	assert.Empty(t, s.Messages())

	s.AdvanceStep()
	s.AdvanceStep()
	require.Equal(t, 2, s.StepIndex())
	msgCount := len(s.Messages())

	// Advance at the last step is a no-op with no message.
	_, ok = s.AdvanceStep()
	assert.False(t, ok)
	assert.Equal(t, 2, s.StepIndex())
	assert.Len(t, s.Messages(), msgCount)
}

func TestBargeInStopsPlaybackBeforeListening(t *testing.T) {
	s, p := newTestSession()

	require.True(t, s.BeginSpeaking())
	require.True(t, s.Speaking())

	s.BeginListening()

	// Sampled immediately after the event: Speaking already false,
	// Listening true, and playback was told to stop.
	assert.False(t, s.Speaking())
	assert.True(t, s.Listening())
	assert.Equal(t, 1, p.stops)
}

func TestPlaybackRequestDroppedWhileListening(t *testing.T) {
	s, _ := newTestSession()

	s.BeginListening()
	assert.False(t, s.BeginSpeaking())
	assert.True(t, s.Listening(), "listening must survive a dropped playback request")
}

func TestEndSpeakingPreservesListeningAfterBargeIn(t *testing.T) {
	s, _ := newTestSession()

	require.True(t, s.BeginSpeaking())
	s.BeginListening()

	// The superseded playback finishes later; its completion must not
	// clobber the Listening floor.
	s.EndSpeaking()
	assert.True(t, s.Listening())
}

func TestDetectedIngredientsReplaceNotUnion(t *testing.T) {
	s, _ := newTestSession()

	s.ApplyAnalysis(&api.AnalyzeResponse{Success: true, DetectedIngredients: []string{"egg", "flour"}})
	assert.Equal(t, []string{"egg", "flour"}, s.DetectedIngredients())

	s.ApplyAnalysis(&api.AnalyzeResponse{Success: true, DetectedIngredients: []string{"flour", "milk"}})
	assert.Equal(t, []string{"flour", "milk"}, s.DetectedIngredients())
}

func TestApplyAnalysisAppendsGuidanceWarningTip(t *testing.T) {
	s, _ := newTestSession()

	speak := s.ApplyAnalysis(&api.AnalyzeResponse{
		Success:  true,
		Guidance: "Lower the heat a little.",
		Warning:  "The butter is about to burn.",
		Tip:      "Stir from the edges inward.",
		Speak:    true,
	})

	assert.Equal(t, "Lower the heat a little.", speak)
	require.Len(t, s.Messages(), 3)
	assert.Equal(t, models.RoleAssistant, s.Messages()[0].Role)
	assert.Equal(t, models.RoleWarning, s.Messages()[1].Role)
	assert.Contains(t, s.Messages()[2].Content, "Stir from the edges")
}

func TestApplyAnalysisSpeakFalseIsSilent(t *testing.T) {
	s, _ := newTestSession()

	speak := s.ApplyAnalysis(&api.AnalyzeResponse{
		Success:  true,
		Guidance: "Keep going, looks good.",
		Speak:    false,
	})
	assert.Empty(t, speak)
	assert.Len(t, s.Messages(), 1, "guidance still lands in the log")
}

func TestMessageLogBounded(t *testing.T) {
	s, _ := newTestSession()

	for i := 0; i < 30; i++ {
		s.AppendUser(fmt.Sprintf("message %d", i))
	}
	require.Len(t, s.Messages(), 20)
	assert.Equal(t, "message 10", s.Messages()[0].Content)
	assert.Equal(t, "message 29", s.Messages()[19].Content)

	recent := s.Recent(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "message 25", recent[0].Content)
}

func TestAnalysisHistoryBounded(t *testing.T) {
	s, _ := newTestSession()

	for i := 0; i < 15; i++ {
		s.ApplyAnalysis(&api.AnalyzeResponse{Success: true, CurrentAction: fmt.Sprintf("action %d", i)})
	}
	require.Len(t, s.history, 10)
	assert.Equal(t, "action 14", s.LastAnalysis().CurrentAction)
}

func TestHandleCommandResultAppliesAction(t *testing.T) {
	s, _ := newTestSession()

	speak := s.HandleCommandResult(&api.VoiceCommandResponse{
		Success:  true,
		Response: "Sure, moving on.",
		Action:   api.ActionNextStep,
	})

	require.Len(t, speak, 2)
	assert.Equal(t, "Sure, moving on.", speak[0])
	assert.Equal(t, "Sauté onions", speak[1])
	assert.Equal(t, 1, s.StepIndex())
}

func TestHandleCommandResultAppendsAdditionalInfo(t *testing.T) {
	s, _ := newTestSession()

	speak := s.HandleCommandResult(&api.VoiceCommandResponse{
		Success:        true,
		Response:       "About two more minutes.",
		AdditionalInfo: "Onions caramelize faster over medium heat.",
	})

	require.Len(t, speak, 2)
	assert.Equal(t, "Onions caramelize faster over medium heat.", speak[1])
	require.Len(t, s.Messages(), 2)
	assert.Equal(t, models.RoleAssistant, s.Messages()[1].Role)
	assert.Contains(t, s.Messages()[1].Content, "caramelize")
}

func TestHandleCommandResultActionClampedAtBoundary(t *testing.T) {
	s, _ := newTestSession()

	speak := s.HandleCommandResult(&api.VoiceCommandResponse{
		Success:  true,
		Response: "You're already at the start.",
		Action:   api.ActionPrevStep,
	})

	require.Len(t, speak, 1)
	assert.Equal(t, 0, s.StepIndex())
}

func TestBuildCommandRequestCarriesContext(t *testing.T) {
	s, _ := newTestSession()
	s.AdvanceStep()
	s.ApplyAnalysis(&api.AnalyzeResponse{
		Success:       true,
		DetectedItems: []string{"onion", "pan"},
		CurrentAction: "sautéing onions",
		TimingAdvice:  "about 2 more minutes",
	})

	req := s.BuildCommandRequest("is this done")
	assert.Equal(t, "is this done", req.Command)
	assert.Equal(t, "French Onion Soup", req.RecipeName)
	assert.Equal(t, 2, req.CurrentStep)
	assert.Equal(t, "Sauté onions", req.CurrentInstruction)
	assert.Equal(t, []string{"onion", "pan"}, req.DetectedIngredients)
	require.NotNil(t, req.LastAnalysis)
	assert.Equal(t, "sautéing onions", req.LastAnalysis.CurrentAction)
}

func TestBuildAnalyzeRequestRollingContext(t *testing.T) {
	s, _ := newTestSession()
	for i := 0; i < 5; i++ {
		s.ApplyAnalysis(&api.AnalyzeResponse{
			Success:  true,
			Guidance: fmt.Sprintf("guidance %d", i),
		})
	}

	req := s.BuildAnalyzeRequest()
	assert.Empty(t, req.ImageBase64, "frame is attached by the scheduler")
	assert.Equal(t, 1, req.CurrentStep)
	require.Len(t, req.PreviousContext.RecentGuidance, 3)
	assert.Equal(t, "guidance 4", req.PreviousContext.RecentGuidance[0])
}

func TestViableTranscript(t *testing.T) {
	assert.True(t, ViableTranscript("how much salt"))
	assert.False(t, ViableTranscript(""))
	assert.False(t, ViableTranscript("   \n\t "))
}

func TestTurnPrecedence(t *testing.T) {
	s, _ := newTestSession()
	assert.Equal(t, models.TurnIdle, s.Turn())

	s.SetAnalyzing(true)
	assert.Equal(t, models.TurnAnalyzing, s.Turn())

	s.SetProcessingCommand(true)
	assert.Equal(t, models.TurnProcessingCommand, s.Turn())

	s.BeginListening()
	assert.Equal(t, models.TurnListening, s.Turn())

	s.EndListening()
	s.SetProcessingCommand(false)
	s.SetAnalyzing(false)
	assert.Equal(t, models.TurnIdle, s.Turn())
}
