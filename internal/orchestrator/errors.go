package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type ErrorKind string

const (
	NetworkUnavailable   ErrorKind = "networkUnavailable"
	RequestTimeout       ErrorKind = "requestTimeout"
	RateLimited          ErrorKind = "rateLimited"
	APIKeyMissing        ErrorKind = "apiKeyMissing"
	AuthenticationFailed ErrorKind = "authenticationFailed"
	InvalidResponse      ErrorKind = "invalidResponse"
	ServerError          ErrorKind = "serverError"
	Unknown              ErrorKind = "unknown"
)

// ProviderError is the failure taxonomy shared by the remote and local
// providers. StatusCode is set for ServerError and HTTP-derived kinds.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (%d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt could succeed. Credential and
// malformed-response failures never are; neither is caller cancellation.
func (e *ProviderError) Retryable() bool {
	if errors.Is(e.Cause, context.Canceled) {
		return false
	}
	switch e.Kind {
	case NetworkUnavailable, RequestTimeout, RateLimited, ServerError, Unknown:
		return true
	default:
		return false
	}
}

type explanation struct {
	zh, zhHint string
	en, enHint string
}

var explanations = map[ErrorKind]explanation{
	NetworkUnavailable: {
		"当前无法连接网络。", "请检查网络连接，恢复后会自动使用在线模型。",
		"The network is unavailable.", "Check your connection; online answers resume automatically.",
	},
	RequestTimeout: {
		"请求超时。", "请稍后再试，或切换到本地模式。",
		"The request timed out.", "Try again shortly or switch to local mode.",
	},
	RateLimited: {
		"请求过于频繁。", "请稍等片刻再提问。",
		"Too many requests.", "Wait a moment before asking again.",
	},
	APIKeyMissing: {
		"未配置在线模型的访问密钥。", "请在设置中填写 API Key。",
		"No API key is configured for the online model.", "Add an API key in settings.",
	},
	AuthenticationFailed: {
		"在线模型认证失败。", "请确认 API Key 是否正确或已过期。",
		"Authentication with the online model failed.", "Check that the API key is correct and not expired.",
	},
	InvalidResponse: {
		"在线模型返回了无法解析的结果。", "请稍后重试。",
		"The online model returned an unreadable response.", "Please try again later.",
	},
	ServerError: {
		"在线模型服务暂时不可用。", "服务恢复前将使用本地或离线回答。",
		"The online model service is temporarily unavailable.", "Local or offline answers are used until it recovers.",
	},
	Unknown: {
		"发生了未知错误。", "请稍后重试。",
		"Something went wrong.", "Please try again later.",
	},
}

// Explain returns a user-facing message and a recovery hint.
func (e *ProviderError) Explain(lang metric.Lang) (string, string) {
	exp, ok := explanations[e.Kind]
	if !ok {
		exp = explanations[Unknown]
	}
	if lang == metric.LangEN {
		return exp.en, exp.enHint
	}
	return exp.zh, exp.zhHint
}

// AsProviderError returns err as a *ProviderError, wrapping unknown errors.
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Kind: Unknown, Cause: err}
}

func classifyStatus(status int, body string) *ProviderError {
	cause := fmt.Errorf("provider returned status %d: %s", status, truncateForLog(body, 300))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Kind: AuthenticationFailed, StatusCode: status, Cause: cause}
	case status == http.StatusRequestTimeout:
		return &ProviderError{Kind: RequestTimeout, StatusCode: status, Cause: cause}
	case status == http.StatusTooManyRequests:
		return &ProviderError{Kind: RateLimited, StatusCode: status, Cause: cause}
	case status >= 500:
		return &ProviderError{Kind: ServerError, StatusCode: status, Cause: cause}
	default:
		return &ProviderError{Kind: Unknown, StatusCode: status, Cause: cause}
	}
}

func classifyTransport(err error) *ProviderError {
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Kind: Unknown, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: RequestTimeout, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Kind: RequestTimeout, Cause: err}
	}
	return &ProviderError{Kind: NetworkUnavailable, Cause: err}
}
