// Package orchestrator turns a prepared prompt into an answer. It routes
// between a local model and a remote provider, retries transient remote
// failures with exponential backoff, and falls back to static templates so
// that every request ends in a Response.
package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

const (
	ConfidenceRemote   = 0.9
	ConfidenceLocal    = 0.75
	ConfidenceTemplate = 0.4
	ConfidenceGeneric  = 0.2
)

type Request struct {
	Prompt
	PreferLocal bool
}

// Notice explains why a response is degraded.
type Notice struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint"`
}

type Response struct {
	Content    string  `json:"content"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Route      Route   `json:"route"`
	Notice     *Notice `json:"notice,omitempty"`
}

func (r Response) Degraded() bool {
	return r.Source == SourceTemplate || r.Source != r.Route.Primary
}

type Orchestrator struct {
	remote    Provider
	local     LocalModel
	templates *TemplateBank
	monitor   *NetworkMonitor
	policy    Policy
	sleep     SleepFunc
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

type Option func(*Orchestrator)

func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func WithMonitor(m *NetworkMonitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

func WithTemplates(bank *TemplateBank) Option {
	return func(o *Orchestrator) { o.templates = bank }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New accepts nil for either provider; a missing provider simply fails over.
func New(remote Provider, local LocalModel, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote: remote,
		local:  local,
		policy: DefaultPolicy,
		sleep:  sleepContext,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.templates == nil {
		o.templates = DefaultTemplates()
	}
	return o
}

func (o *Orchestrator) Route(req Request) Route {
	state := ModelUnloaded
	if o.local != nil {
		state = o.local.State()
	}
	return route(req.Query, req.PreferLocal, o.monitor.Online(), state)
}

func (o *Orchestrator) Monitor() *NetworkMonitor {
	return o.monitor
}

// Respond never fails. Quality degrades from the primary provider to the
// alternate one, then to a keyword template, then to a generic message.
func (o *Orchestrator) Respond(ctx context.Context, req Request) Response {
	r := o.Route(req)
	log := o.logger.With().Str("route", string(r.Reason)).Logger()

	var lastErr *ProviderError
	for i, source := range []Source{r.Primary, r.Alternate()} {
		content, err := o.call(ctx, source, req.Prompt, i == 0)
		if err == nil {
			resp := Response{Content: content, Source: source, Confidence: confidence(source), Route: r}
			return o.finish(resp, lastErr, req.Lang)
		}
		lastErr = AsProviderError(err)
		log.Warn().
			Err(err).
			Str("source", string(source)).
			Str("kind", string(lastErr.Kind)).
			Msg("provider failed")
	}

	resp := Response{Source: SourceTemplate, Route: r}
	if name, text, ok := o.templates.Match(req.Query, req.Lang); ok {
		resp.Content = text
		resp.Confidence = ConfidenceTemplate
		log.Info().Str("template", name).Msg("answered from template")
	} else {
		resp.Content = o.templates.GenericMessage(req.Lang)
		resp.Confidence = ConfidenceGeneric
	}
	if facts := strings.TrimSpace(req.Facts); facts != "" {
		resp.Content = facts + "\n\n" + resp.Content
	}
	return o.finish(resp, lastErr, req.Lang)
}

func (o *Orchestrator) finish(resp Response, lastErr *ProviderError, lang metric.Lang) Response {
	if lastErr != nil && resp.Degraded() {
		message, hint := lastErr.Explain(lang)
		resp.Notice = &Notice{Kind: lastErr.Kind, Message: message, Hint: hint}
	}
	o.metrics.Response(string(resp.Source))
	return resp
}

func (o *Orchestrator) call(ctx context.Context, source Source, p Prompt, primary bool) (string, error) {
	if source == SourceLocal {
		return o.callLocal(ctx, p)
	}
	return o.callRemote(ctx, p, primary)
}

// callRemote retries only as the primary; as the alternate it gets one try.
func (o *Orchestrator) callRemote(ctx context.Context, p Prompt, primary bool) (string, error) {
	if !o.monitor.Online() {
		return "", &ProviderError{Kind: NetworkUnavailable}
	}
	if o.remote == nil {
		return "", &ProviderError{Kind: APIKeyMissing}
	}
	policy := o.policy
	if !primary {
		policy.MaxRetries = 1
	}

	var answer string
	err := Retry(ctx, policy, o.sleep, func(ctx context.Context, attempt int) error {
		text, err := o.remote.Generate(ctx, p)
		if err != nil {
			pe := AsProviderError(err)
			o.metrics.ProviderAttempt(string(SourceRemote), string(pe.Kind))
			o.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("remote attempt failed")
			return pe
		}
		o.metrics.ProviderAttempt(string(SourceRemote), "ok")
		answer = text
		return nil
	})
	return answer, err
}

func (o *Orchestrator) callLocal(ctx context.Context, p Prompt) (string, error) {
	if o.local == nil {
		return "", &ProviderError{Kind: Unknown, Cause: ErrLocalModelUnavailable}
	}
	if err := o.local.LoadIfNeeded(ctx); err != nil {
		o.metrics.ProviderAttempt(string(SourceLocal), "load_failed")
		return "", err
	}
	text, err := o.local.Generate(ctx, p)
	if err != nil {
		o.metrics.ProviderAttempt(string(SourceLocal), string(AsProviderError(err).Kind))
		return "", err
	}
	o.metrics.ProviderAttempt(string(SourceLocal), "ok")
	return text, nil
}

func confidence(source Source) float64 {
	switch source {
	case SourceRemote:
		return ConfidenceRemote
	case SourceLocal:
		return ConfidenceLocal
	default:
		return ConfidenceTemplate
	}
}
