package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider generates an answer for a prompt.
type Provider interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// RemoteProvider posts prompts to a hosted model endpoint. The endpoint may
// be an OpenAI-style gateway or a simple query service; the body field name
// and the answer extraction adapt to both.
type RemoteProvider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &RemoteProvider{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		model:    strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RemoteProvider) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Kind: APIKeyMissing, Cause: errors.New("REMOTE_AI_KEY is not configured")}
	}
	if c.endpoint == "" {
		return "", &ProviderError{Kind: APIKeyMissing, Cause: errors.New("REMOTE_AI_URL is not configured")}
	}

	payload := map[string]any{
		c.queryField(): strings.TrimSpace(p.Query),
		"context":      p.Context(),
	}
	if c.model != "" {
		payload["model"] = c.model
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderError{Kind: Unknown, Cause: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyRaw))
	if err != nil {
		return "", &ProviderError{Kind: Unknown, Cause: err}
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", classifyTransport(err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", classifyStatus(response.StatusCode, string(responseBody))
	}

	var parsed map[string]any
	if err := json.Unmarshal(responseBody, &parsed); err != nil || parsed == nil {
		return "", &ProviderError{Kind: InvalidResponse, Cause: errors.New("response is not a JSON object: " + truncateForLog(string(responseBody), 200))}
	}
	answer := extractAnswer(parsed)
	if answer == "" {
		return "", &ProviderError{Kind: InvalidResponse, Cause: errors.New("response answer is empty")}
	}
	return answer, nil
}

// queryField is "query" for /query and /ask style endpoints, "prompt" otherwise.
func (c *RemoteProvider) queryField() string {
	path := c.endpoint
	if parsed, err := url.Parse(c.endpoint); err == nil {
		path = parsed.Path
	}
	path = strings.ToLower(strings.TrimRight(path, "/"))
	if strings.HasSuffix(path, "/query") || strings.HasSuffix(path, "/ask") {
		return "query"
	}
	return "prompt"
}

var answerFields = []string{"response", "answer", "text", "output_text", "content", "result", "message"}

func extractAnswer(data map[string]any) string {
	for _, field := range answerFields {
		if text := strings.TrimSpace(toString(data[field])); text != "" {
			return text
		}
	}
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if text := strings.TrimSpace(toString(message["content"])); text != "" {
					return text
				}
			}
		}
	}
	return extractOutputBlocks(data)
}

// extractOutputBlocks reads the Responses API shape:
// output[].content[] with type output_text.
func extractOutputBlocks(data map[string]any) string {
	outputs, ok := data["output"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0)
	for _, item := range outputs {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		contentList, ok := block["content"].([]any)
		if !ok {
			continue
		}
		for _, contentItem := range contentList {
			contentMap, ok := contentItem.(map[string]any)
			if !ok {
				continue
			}
			contentType := strings.ToLower(strings.TrimSpace(toString(contentMap["type"])))
			if contentType != "output_text" && contentType != "text" {
				continue
			}
			if text := strings.TrimSpace(toString(contentMap["text"])); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		return ""
	}
}
