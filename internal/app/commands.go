package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/models"
	"github.com/pantrychef/livecoach/internal/player"
)

// Messages delivered to the update loop by asynchronous work.

// levelTickMsg drives microphone sampling and voice detection.
type levelTickMsg time.Time

// analysisTickMsg drives the frame-analysis schedule.
type analysisTickMsg time.Time

type recordingStoppedMsg struct {
	artifact *models.RecordingArtifact
	err      error
}

type transcriptMsg struct {
	text string
	err  error
}

type commandDoneMsg struct {
	resp *api.VoiceCommandResponse
	err  error
}

type speechReadyMsg struct {
	payload []byte
	err     error
}

type playbackDoneMsg struct {
	outcome player.Outcome
}

type analysisDoneMsg struct {
	resp *api.AnalyzeResponse
	err  error
}

const levelTickInterval = 16 * time.Millisecond

// levelTick schedules the next microphone sample.
func levelTick() tea.Cmd {
	return tea.Tick(levelTickInterval, func(t time.Time) tea.Msg {
		return levelTickMsg(t)
	})
}

// analysisTick schedules the next frame-analysis attempt.
func analysisTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return analysisTickMsg(t)
	})
}

// stopRecordingCmd flushes the active recording off the update loop.
func stopRecordingCmd(a *App) tea.Cmd {
	return func() tea.Msg {
		artifact, err := a.recorder.Stop()
		return recordingStoppedMsg{artifact: artifact, err: err}
	}
}

// transcribeCmd uploads a recording for speech recognition.
func transcribeCmd(a *App, artifact *models.RecordingArtifact) tea.Cmd {
	return func() tea.Msg {
		text, err := a.client.Transcribe(context.Background(), artifact)
		return transcriptMsg{text: text, err: err}
	}
}

// voiceCommandCmd sends a transcript with the cooking context attached.
func voiceCommandCmd(a *App, req api.VoiceCommandRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := a.client.VoiceCommand(context.Background(), req)
		return commandDoneMsg{resp: resp, err: err}
	}
}

// speakCmd synthesizes speech for a coach utterance.
func speakCmd(a *App, text string) tea.Cmd {
	return func() tea.Msg {
		payload, err := a.client.Speak(context.Background(), text)
		return speechReadyMsg{payload: payload, err: err}
	}
}

// playCmd starts playback and waits for its single outcome.
func playCmd(a *App, payload []byte) tea.Cmd {
	return func() tea.Msg {
		done, err := a.player.Play(payload)
		if err != nil {
			a.logger.Warn("playback could not start", zap.Error(err))
			return playbackDoneMsg{outcome: player.OutcomeErrored}
		}
		return playbackDoneMsg{outcome: <-done}
	}
}

// analyzeCmd grabs a frame and sends it with the context snapshot. The
// caller must have claimed the scheduler slot.
func analyzeCmd(a *App, req api.AnalyzeRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := a.scheduler.Analyze(context.Background(), req)
		return analysisDoneMsg{resp: resp, err: err}
	}
}
