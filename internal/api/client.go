// Package api is the HTTP client for the Chef Pantry cooking backend. The
// backend owns all model calls; this client only moves frames, audio and
// context across the wire.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/models"
)

const (
	// guidanceTimeout bounds small JSON calls (commands, TTS, recipes).
	guidanceTimeout = 10 * time.Second
	// mediaTimeout bounds uploads carrying image or audio payloads.
	mediaTimeout = 30 * time.Second

	maxRetries = 3
)

// Client talks to the cooking backend.
type Client struct {
	BaseURL    string
	Voice      string
	HTTPClient *http.Client

	logger     *zap.Logger
	recipes    *cache.Cache
	newBackoff func() backoff.BackOff
}

// NewClient creates a backend client. voice selects the TTS voice for
// Speak calls.
func NewClient(baseURL, voice string, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Voice:      voice,
		HTTPClient: &http.Client{},
		logger:     logger.With(zap.String("component", "api")),
		recipes:    cache.New(5*time.Minute, 10*time.Minute),
		newBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 250 * time.Millisecond
			return bo
		},
	}
}

// Health verifies the backend is reachable. Called once at startup; a
// failure here is fatal, unlike the per-cycle enrichment calls.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, guidanceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &Error{Op: "health", Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Op: "health", Kind: kindForStatus(resp.StatusCode),
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// AnalyzeFrame sends one camera frame with cooking context to the vision
// endpoint. Never retried: a skipped analysis cycle is cheaper than a
// stale result arriving after fresher ones.
func (c *Client) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.postJSON(ctx, "analyze", "/api/live-cook/analyze", req, &out, mediaTimeout); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Error{Op: "analyze", Kind: KindTransient,
			Err: fmt.Errorf("backend reported failure: %s", out.Error)}
	}
	return &out, nil
}

// VoiceCommand routes a transcribed command to the assistant. Retried with
// backoff; the user is waiting on this one.
func (c *Client) VoiceCommand(ctx context.Context, req VoiceCommandRequest) (*VoiceCommandResponse, error) {
	var out VoiceCommandResponse
	err := c.retry(ctx, "voice-command", func() error {
		return c.postJSON(ctx, "voice-command", "/api/live-cook/voice-command", req, &out, guidanceTimeout)
	})
	if err != nil {
		return nil, err
	}
	if out.Response == "" && !out.Success {
		return nil, &Error{Op: "voice-command", Kind: KindTransient,
			Err: fmt.Errorf("backend reported failure: %s", out.Error)}
	}
	return &out, nil
}

// Transcribe uploads a recording artifact for speech recognition and
// returns the recognized text, which may be empty.
func (c *Client) Transcribe(ctx context.Context, artifact *models.RecordingArtifact) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(artifact.Bytes); err != nil {
		return "", fmt.Errorf("failed to write audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	var out TranscribeResponse
	err = c.retry(ctx, "transcribe", func() error {
		return c.post(ctx, "transcribe", "/api/voice/transcribe",
			writer.FormDataContentType(), bytes.NewReader(body.Bytes()), &out, mediaTimeout)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// Speak synthesizes text and returns a playable MP3 payload.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	req := SpeakRequest{Text: text, Voice: c.Voice}
	var out SpeakResponse
	err := c.retry(ctx, "speak", func() error {
		return c.postJSON(ctx, "speak", "/api/voice/speak", req, &out, guidanceTimeout)
	})
	if err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, &Error{Op: "speak", Kind: KindTransient,
			Err: fmt.Errorf("malformed audio payload: %w", err)}
	}
	if len(payload) == 0 {
		return nil, &Error{Op: "speak", Kind: KindTransient,
			Err: fmt.Errorf("empty audio payload")}
	}
	return payload, nil
}

// Recipe fetches a recipe and splits its instructions into steps. Results
// are cached; the recipe does not change while it is being cooked.
func (c *Client) Recipe(ctx context.Context, id int) (*models.Recipe, error) {
	key := fmt.Sprintf("recipe:%d", id)
	if cached, ok := c.recipes.Get(key); ok {
		return cached.(*models.Recipe), nil
	}

	ctx, cancel := context.WithTimeout(ctx, guidanceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/recipes/%d", c.BaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "recipe", Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &Error{Op: "recipe", Kind: kindForStatus(resp.StatusCode),
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body))}
	}

	var wire recipeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &Error{Op: "recipe", Kind: KindTransient,
			Err: fmt.Errorf("failed to decode recipe: %w", err)}
	}

	recipe := &models.Recipe{
		ID:    wire.ID,
		Name:  wire.Name,
		Steps: models.SplitInstructions(wire.Instructions),
	}
	for _, ing := range wire.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, models.Ingredient{
			Name:     ing.Name,
			Category: ing.Category,
		})
	}

	c.recipes.Set(key, recipe, cache.DefaultExpiration)
	return recipe, nil
}

// retry runs op with exponential backoff, giving up immediately on
// non-transient failures.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("remote call failed, will retry",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackoff(), maxRetries), ctx)
	return backoff.Retry(wrapped, bo)
}

// postJSON posts a JSON body and decodes a JSON response.
func (c *Client) postJSON(ctx context.Context, op, path string, in, out any, timeout time.Duration) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}
	return c.post(ctx, op, path, "application/json", bytes.NewReader(body), out, timeout)
}

// post sends a request body and decodes the JSON response, mapping HTTP
// and transport failures onto the error taxonomy.
func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &Error{Op: op, Kind: kindForStatus(resp.StatusCode),
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindTransient,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max])
}
