package app

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/camera"
	"github.com/pantrychef/livecoach/internal/coach"
	"github.com/pantrychef/livecoach/internal/models"
	"github.com/pantrychef/livecoach/internal/vad"
)

// viewState selects which screen is rendered.
type viewState int

const (
	viewCoach viewState = iota
	viewSettings
)

const (
	displayedMessages = 5
	meterWidth        = 12
)

// Model is the Bubble Tea model. Toggle flags live here; conversational
// state lives in the session.
type Model struct {
	app  *App
	view viewState

	level        int
	cameraOn     bool
	vadOn        bool
	voiceOn      bool
	autoAnalysis bool

	// Guards against starting a second analysis tick chain when the
	// camera is toggled off and on again before the pending tick fires.
	tickAlive bool

	// Device failures stay visible until the device recovers.
	cameraErr string
	micErr    string
	statusErr string

	width  int
	height int
}

// NewModel creates the model from the app's configuration.
func NewModel(app *App) *Model {
	m := &Model{
		app:          app,
		view:         viewCoach,
		vadOn:        app.cfg.VADEnabled && app.monitor.Running(),
		voiceOn:      app.cfg.VoiceEnabled,
		autoAnalysis: app.cfg.AutoAnalysis,
		width:        80,
		height:       24,
	}
	if app.micStartErr != nil {
		m.micErr = "microphone unavailable: " + app.micStartErr.Error()
	}
	return m
}

// Init starts the microphone sampling loop.
func (m *Model) Init() tea.Cmd {
	return levelTick()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case levelTickMsg:
		return m.handleLevelTick(time.Time(msg))

	case analysisTickMsg:
		return m.handleAnalysisTick()

	case recordingStoppedMsg:
		return m.handleRecordingStopped(msg)

	case transcriptMsg:
		return m.handleTranscript(msg)

	case commandDoneMsg:
		return m.handleCommandDone(msg)

	case speechReadyMsg:
		return m.handleSpeechReady(msg)

	case playbackDoneMsg:
		m.app.session.EndSpeaking()
		return m, nil

	case analysisDoneMsg:
		return m.handleAnalysisDone(msg)
	}

	return m, nil
}

// handleLevelTick samples the microphone, feeds the voice detector and
// reschedules itself.
func (m *Model) handleLevelTick(now time.Time) (tea.Model, tea.Cmd) {
	m.level = m.app.monitor.Level()
	cmds := []tea.Cmd{levelTick()}

	if m.vadOn && m.app.monitor.Running() {
		busy := m.app.recorder.Active() || m.app.session.ProcessingCommand()
		switch m.app.detector.Observe(m.level, now, busy) {
		case vad.EventSpeechStart:
			m.startListening()
		case vad.EventSpeechEnd:
			cmds = append(cmds, stopRecordingCmd(m.app))
		}
	}

	return m, tea.Batch(cmds...)
}

// startListening claims the floor and opens the capture stream in one
// synchronous step, so playback is already stopped before recording is
// observable.
func (m *Model) startListening() {
	m.app.session.BeginListening()
	if _, err := m.app.recorder.Begin(); err != nil {
		m.app.session.EndListening()
		m.app.detector.Reset()
		m.micErr = "microphone unavailable: " + err.Error()
		m.app.logger.Error("failed to start recording", zap.Error(err))
		return
	}
	m.micErr = ""
}

func (m *Model) handleRecordingStopped(msg recordingStoppedMsg) (tea.Model, tea.Cmd) {
	m.app.session.EndListening()
	m.app.detector.Reset()

	if msg.err != nil {
		m.app.logger.Warn("failed to stop recording", zap.Error(msg.err))
		return m, nil
	}
	if !msg.artifact.Viable(m.app.cfg.MinArtifactBytes, m.app.cfg.MinSpeechDuration) {
		m.app.logger.Info("recording below viability gate, discarded",
			zap.Int("bytes", len(msg.artifact.Bytes)),
			zap.Duration("duration", msg.artifact.Duration))
		return m, nil
	}

	// The busy gate must hold for the whole voice pipeline, transcription
	// included, so the detector cannot open a second recording while the
	// first utterance is still in flight.
	m.app.session.SetProcessingCommand(true)
	return m, transcribeCmd(m.app, msg.artifact)
}

func (m *Model) handleTranscript(msg transcriptMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.app.session.SetProcessingCommand(false)
		m.app.logger.Warn("transcription failed", zap.Error(msg.err))
		m.surfaceIfPermission(msg.err)
		return m, nil
	}
	if !coach.ViableTranscript(msg.text) {
		m.app.session.SetProcessingCommand(false)
		return m, nil
	}

	m.app.session.AppendUser(msg.text)
	return m, voiceCommandCmd(m.app, m.app.session.BuildCommandRequest(msg.text))
}

func (m *Model) handleCommandDone(msg commandDoneMsg) (tea.Model, tea.Cmd) {
	m.app.session.SetProcessingCommand(false)

	if msg.err != nil {
		m.app.logger.Warn("voice command failed", zap.Error(msg.err))
		m.surfaceIfPermission(msg.err)
		return m, nil
	}

	speak := m.app.session.HandleCommandResult(msg.resp)
	if m.voiceOn && len(speak) > 0 {
		return m, speakCmd(m.app, strings.Join(speak, " "))
	}
	return m, nil
}

func (m *Model) handleSpeechReady(msg speechReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.app.logger.Warn("speech synthesis failed", zap.Error(msg.err))
		m.surfaceIfPermission(msg.err)
		return m, nil
	}
	// The user may have started talking while the audio was synthesized;
	// a stale response is dropped, never queued.
	if !m.app.session.BeginSpeaking() {
		return m, nil
	}
	return m, playCmd(m.app, msg.payload)
}

// handleAnalysisTick claims the single in-flight slot and dispatches one
// frame. Ticks that land while a request is outstanding are skipped. The
// tick chain dies when the camera is off and restarts on the next toggle.
func (m *Model) handleAnalysisTick() (tea.Model, tea.Cmd) {
	if !m.cameraOn {
		m.tickAlive = false
		return m, nil
	}

	cmds := []tea.Cmd{analysisTick(m.app.scheduler.Interval())}
	if m.autoAnalysis && m.app.scheduler.TryBegin() {
		m.app.session.SetAnalyzing(true)
		cmds = append(cmds, analyzeCmd(m.app, m.app.session.BuildAnalyzeRequest()))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnalysisDone(msg analysisDoneMsg) (tea.Model, tea.Cmd) {
	m.app.scheduler.Finish(msg.err)
	m.app.session.SetAnalyzing(false)

	// The camera may have been turned off while the request was in
	// flight; its result is stale and must not be merged or spoken.
	if !m.cameraOn {
		return m, nil
	}

	if msg.err != nil {
		m.surfaceIfPermission(msg.err)
		return m, nil
	}

	speak := m.app.session.ApplyAnalysis(msg.resp)
	if speak != "" && m.voiceOn && !m.app.session.Listening() {
		return m, speakCmd(m.app, speak)
	}
	return m, nil
}

// surfaceIfPermission keeps permission failures on screen; transient ones
// are already logged and the pipeline continues without them.
func (m *Model) surfaceIfPermission(err error) {
	if api.KindOf(err) == api.KindPermission {
		m.statusErr = err.Error()
	}
}

// handleKeyPress handles keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case viewSettings:
		return m.handleSettingsKeys(msg)
	default:
		return m.handleCoachKeys(msg)
	}
}

func (m *Model) handleCoachKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case " ":
		// Push-to-talk: start or finish a recording manually.
		if m.app.recorder.Active() {
			return m, stopRecordingCmd(m.app)
		}
		m.startListening()
		return m, nil

	case "c":
		return m.toggleCamera()

	case "f":
		m.flipCamera()
		return m, nil

	case "d":
		return m.toggleDetection()

	case "v":
		m.voiceOn = !m.voiceOn
		if !m.voiceOn {
			m.app.player.Stop()
		}
		return m, nil

	case "a":
		m.autoAnalysis = !m.autoAnalysis
		return m, nil

	case "n", "right":
		if text, ok := m.app.session.AdvanceStep(); ok && m.voiceOn {
			return m, speakCmd(m.app, text)
		}
		return m, nil

	case "p", "left":
		if text, ok := m.app.session.RetreatStep(); ok && m.voiceOn {
			return m, speakCmd(m.app, text)
		}
		return m, nil

	case "s":
		m.view = viewSettings
		return m, nil
	}
	return m, nil
}

func (m *Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "s":
		m.view = viewCoach
		return m, nil
	case "+", "=":
		m.app.scheduler.AdjustInterval(time.Second)
		return m, nil
	case "-", "_":
		m.app.scheduler.AdjustInterval(-time.Second)
		return m, nil
	case "d":
		return m.toggleDetection()
	case "v":
		m.voiceOn = !m.voiceOn
		if !m.voiceOn {
			m.app.player.Stop()
		}
		return m, nil
	case "a":
		m.autoAnalysis = !m.autoAnalysis
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// toggleCamera lazily opens the capture source and starts the analysis
// schedule. An unavailable camera stays visible as a persistent error.
func (m *Model) toggleCamera() (tea.Model, tea.Cmd) {
	if m.cameraOn {
		m.cameraOn = false
		return m, nil
	}

	if m.app.source == nil {
		src, err := camera.NewFFmpegSource(m.app.cfg.CameraDevice, m.app.logger)
		if err != nil {
			m.cameraErr = "camera unavailable: " + err.Error()
			m.app.logger.Error("failed to open camera", zap.Error(err))
			return m, nil
		}
		m.app.source = src
		m.app.scheduler.SetSource(src)
	}

	m.cameraOn = true
	m.cameraErr = ""
	if m.tickAlive {
		return m, nil
	}
	m.tickAlive = true
	return m, analysisTick(m.app.scheduler.Interval())
}

// flipCamera switches between the primary and alternate capture devices.
func (m *Model) flipCamera() {
	if m.app.source == nil || m.app.cfg.CameraDeviceAlt == "" {
		return
	}
	if m.app.source.Device() == m.app.cfg.CameraDevice {
		m.app.source.SetDevice(m.app.cfg.CameraDeviceAlt)
	} else {
		m.app.source.SetDevice(m.app.cfg.CameraDevice)
	}
}

// toggleDetection turns hands-free voice detection on or off, starting the
// level monitor on demand.
func (m *Model) toggleDetection() (tea.Model, tea.Cmd) {
	if m.vadOn {
		m.vadOn = false
		m.app.detector.Reset()
		return m, nil
	}

	if !m.app.monitor.Running() {
		if err := m.app.monitor.Start(m.app.cfg.SampleRate); err != nil {
			m.micErr = "microphone unavailable: " + err.Error()
			m.app.logger.Error("failed to start level monitor", zap.Error(err))
			return m, nil
		}
	}
	m.micErr = ""
	m.vadOn = true
	return m, nil
}

// View renders the current screen.
func (m *Model) View() string {
	switch m.view {
	case viewSettings:
		return m.renderSettings()
	default:
		return m.renderCoach()
	}
}

// renderCoach renders the main cooking screen.
func (m *Model) renderCoach() string {
	s := m.app.session
	title := titleStyle.Render(s.Recipe().Name)

	status := fmt.Sprintf("%s | step %d/%d | mic %s",
		s.Turn(), s.StepIndex()+1, s.StepCount(), m.levelMeter())
	toggles := fmt.Sprintf("[c]amera %s  [d]etect %s  [v]oice %s  [a]uto %s  every %s",
		onOff(m.cameraOn), onOff(m.vadOn), onOff(m.voiceOn), onOff(m.autoAnalysis),
		m.app.scheduler.Interval())

	step := stepStyle.Render(fmt.Sprintf("Step %d: %s", s.StepIndex()+1, s.CurrentStep().Text))

	parts := []string{title, statusStyle.Render(status), statusStyle.Render(toggles), "", step}

	if ingredients := s.DetectedIngredients(); len(ingredients) > 0 {
		parts = append(parts, statusStyle.Render("Seen: "+strings.Join(ingredients, ", ")))
	}
	if last := s.LastAnalysis(); last != nil && last.CurrentAction != "" {
		line := last.CurrentAction
		if last.TimingAdvice != "" {
			line += " (" + last.TimingAdvice + ")"
		}
		parts = append(parts, statusStyle.Render(line))
	}

	parts = append(parts, "")
	for _, msg := range s.Recent(displayedMessages) {
		parts = append(parts, m.renderMessage(msg))
	}

	if m.app.recorder.Active() {
		parts = append(parts, "",
			recordingStyle.Render(fmt.Sprintf("● recording %.1fs", m.app.recorder.Elapsed().Seconds())))
	}
	for _, e := range []string{m.cameraErr, m.micErr, m.statusErr} {
		if e != "" {
			parts = append(parts, "", errorStyle.Render(e))
		}
	}

	parts = append(parts, "",
		helpStyle.Render("space talk  n/p step  c camera  f flip  d detect  v voice  a auto  s settings  q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderMessage renders one log entry with its role prefix.
func (m *Model) renderMessage(msg models.Message) string {
	ts := msg.Timestamp.Format("15:04:05")
	switch msg.Role {
	case models.RoleUser:
		return userStyle.Render(fmt.Sprintf("[%s] You: %s", ts, msg.Content))
	case models.RoleWarning:
		return warningStyle.Render(fmt.Sprintf("[%s] ⚠ %s", ts, msg.Content))
	default:
		return fmt.Sprintf("[%s] Coach: %s", ts, msg.Content)
	}
}

// renderSettings renders the settings screen.
func (m *Model) renderSettings() string {
	cfg := m.app.cfg
	vcfg := m.app.detector.Config()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Settings") + "\n\n")
	sb.WriteString(fmt.Sprintf("Analysis interval: %s (+/- to adjust)\n", m.app.scheduler.Interval()))
	sb.WriteString(fmt.Sprintf("Auto analysis:     %s (a)\n", onOff(m.autoAnalysis)))
	sb.WriteString(fmt.Sprintf("Voice detection:   %s (d), threshold %d, %d frames, %s silence\n",
		onOff(m.vadOn), vcfg.Threshold, vcfg.RequiredHighFrames, vcfg.SilenceTimeout))
	sb.WriteString(fmt.Sprintf("Voice guidance:    %s (v), voice %s\n", onOff(m.voiceOn), cfg.VoiceID))
	sb.WriteString(fmt.Sprintf("Camera device:     %s\n", cfg.CameraDevice))
	sb.WriteString(fmt.Sprintf("Backend:           %s\n", cfg.BackendURL))
	sb.WriteString("\n" + helpStyle.Render("Esc to return"))
	return sb.String()
}

// levelMeter renders the microphone level as a fixed-width bar.
func (m *Model) levelMeter() string {
	filled := m.level * meterWidth / 255
	if filled > meterWidth {
		filled = meterWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Styles

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	stepStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)
