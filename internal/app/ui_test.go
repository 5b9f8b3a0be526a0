package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/audio"
	"github.com/pantrychef/livecoach/internal/coach"
	"github.com/pantrychef/livecoach/internal/config"
	"github.com/pantrychef/livecoach/internal/models"
	"github.com/pantrychef/livecoach/internal/player"
	"github.com/pantrychef/livecoach/internal/vad"
)

// newTestModel builds a model over real components; nothing here opens an
// audio or video device, and commands returned by handlers are never run.
func newTestModel(t *testing.T) *Model {
	t.Helper()

	cfg := config.DefaultConfig()
	logger := zap.NewNop()
	pl := player.New(t.TempDir(), logger)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		client:   api.NewClient(cfg.BackendURL, cfg.VoiceID, logger),
		monitor:  audio.NewMonitor(logger),
		recorder: audio.NewRecorder(cfg.SampleRate, logger),
		player:   pl,
		detector: vad.New(vad.DefaultConfig()),
	}
	a.session = coach.NewSession(&models.Recipe{
		ID:    1,
		Name:  "French Onion Soup",
		Steps: models.SplitInstructions("Chop onions\nSauté onions\nAdd garlic"),
	}, pl, logger)
	a.scheduler = coach.NewScheduler(nil, a.client, cfg.AnalysisInterval, logger)

	return NewModel(a)
}

func viableArtifact() *models.RecordingArtifact {
	return &models.RecordingArtifact{
		Bytes:    make([]byte, 4000),
		MimeType: "audio/wav",
		Duration: time.Second,
	}
}

func TestBusyGateCoversTranscriptionRoundTrip(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.handleRecordingStopped(recordingStoppedMsg{artifact: viableArtifact()})
	require.NotNil(t, cmd, "a viable artifact is forwarded to transcription")
	assert.True(t, m.app.session.ProcessingCommand(),
		"the detector's busy gate must hold while the transcript is pending")

	// A failed transcription releases the gate.
	m.handleTranscript(transcriptMsg{err: errors.New("backend down")})
	assert.False(t, m.app.session.ProcessingCommand())

	// So does a transcript with nothing in it.
	m.handleRecordingStopped(recordingStoppedMsg{artifact: viableArtifact()})
	m.handleTranscript(transcriptMsg{text: "   "})
	assert.False(t, m.app.session.ProcessingCommand())
}

func TestBusyGateHeldUntilCommandResponse(t *testing.T) {
	m := newTestModel(t)

	m.handleRecordingStopped(recordingStoppedMsg{artifact: viableArtifact()})
	_, cmd := m.handleTranscript(transcriptMsg{text: "how much salt"})
	require.NotNil(t, cmd)
	assert.True(t, m.app.session.ProcessingCommand(),
		"the gate carries over from transcription to the command call")

	m.handleCommandDone(commandDoneMsg{resp: &api.VoiceCommandResponse{
		Success:  true,
		Response: "Half a teaspoon.",
	}})
	assert.False(t, m.app.session.ProcessingCommand())
}

func TestUnviableArtifactLeavesGateClosed(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.handleRecordingStopped(recordingStoppedMsg{artifact: &models.RecordingArtifact{
		Bytes:    make([]byte, 100),
		Duration: 50 * time.Millisecond,
	}})
	assert.Nil(t, cmd, "an unviable artifact is never transcribed")
	assert.False(t, m.app.session.ProcessingCommand())
}

func TestAnalysisResultAfterCameraOffIsDropped(t *testing.T) {
	m := newTestModel(t)
	m.cameraOn = true
	m.tickAlive = true
	require.True(t, m.app.scheduler.TryBegin())
	m.app.session.SetAnalyzing(true)

	// The camera goes off while the request is in flight.
	m.cameraOn = false

	_, cmd := m.handleAnalysisDone(analysisDoneMsg{resp: &api.AnalyzeResponse{
		Success:  true,
		Guidance: "Lower the heat a little.",
		Speak:    true,
	}})

	assert.Nil(t, cmd, "a stale result must not trigger playback")
	assert.Empty(t, m.app.session.Messages(), "a stale result must not be merged")
	assert.False(t, m.app.scheduler.InFlight(), "the slot is released regardless")
	assert.Equal(t, models.TurnIdle, m.app.session.Turn())
}
