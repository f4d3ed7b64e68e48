package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type ModelState string

const (
	ModelUnloaded ModelState = "unloaded"
	ModelLoading  ModelState = "loading"
	ModelLoaded   ModelState = "loaded"
	ModelFailed   ModelState = "failed"
)

var ErrLocalModelUnavailable = errors.New("local model is not available")

// LocalModel is an on-device or on-host text generator. Loading may be slow;
// callers check State to decide whether routing to it is worthwhile.
type LocalModel interface {
	Provider
	LoadIfNeeded(ctx context.Context) error
	Unload(ctx context.Context) error
	State() ModelState
}

// OllamaModel drives a model served by a local Ollama-compatible daemon.
type OllamaModel struct {
	baseURL    string
	model      string
	httpClient *http.Client

	mu    sync.Mutex
	state ModelState
}

func NewOllamaModel(baseURL, model string) *OllamaModel {
	return &OllamaModel{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		state: ModelUnloaded,
	}
}

func (m *OllamaModel) State() ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *OllamaModel) setState(state ModelState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// LoadIfNeeded asks the daemon to load the model by sending an empty prompt.
func (m *OllamaModel) LoadIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	if m.state == ModelLoaded {
		m.mu.Unlock()
		return nil
	}
	m.state = ModelLoading
	m.mu.Unlock()

	if _, err := m.generate(ctx, map[string]any{"model": m.model, "stream": false}); err != nil {
		m.setState(ModelFailed)
		return err
	}
	m.setState(ModelLoaded)
	return nil
}

func (m *OllamaModel) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := m.LoadIfNeeded(ctx); err != nil {
		return "", err
	}
	resp, err := m.generate(ctx, map[string]any{
		"model":  m.model,
		"prompt": p.Render(),
		"stream": false,
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Response)
	if answer == "" {
		return "", &ProviderError{Kind: InvalidResponse, Cause: errors.New("local model returned an empty answer")}
	}
	return answer, nil
}

// Unload releases the model's memory (keep_alive 0).
func (m *OllamaModel) Unload(ctx context.Context) error {
	_, err := m.generate(ctx, map[string]any{"model": m.model, "keep_alive": 0, "stream": false})
	if err != nil {
		return err
	}
	m.setState(ModelUnloaded)
	return nil
}

type ollamaResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

func (m *OllamaModel) generate(ctx context.Context, payload map[string]any) (ollamaResponse, error) {
	if m.baseURL == "" || m.model == "" {
		return ollamaResponse{}, &ProviderError{Kind: Unknown, Cause: ErrLocalModelUnavailable}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ollamaResponse{}, &ProviderError{Kind: Unknown, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return ollamaResponse{}, &ProviderError{Kind: Unknown, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return ollamaResponse{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ollamaResponse{}, classifyStatus(resp.StatusCode, string(raw))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ollamaResponse{}, &ProviderError{Kind: InvalidResponse, Cause: fmt.Errorf("decode local model response: %w", err)}
	}
	return out, nil
}
