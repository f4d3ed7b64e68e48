// Package assistant runs one conversation turn end to end: clarification,
// intent parsing, aggregation, insights, response generation and the ordered
// commit of the turn into the session context.
package assistant

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/orchestrator"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

var ErrEmptyQuery = errors.New("query is required")

const historyTurns = 8

// Responder turns a prompt into a response and never fails.
type Responder interface {
	Respond(ctx context.Context, req orchestrator.Request) orchestrator.Response
}

type TurnRequest struct {
	Subject string
	// SessionID selects a session; empty means the subject's current one.
	SessionID   string
	Query       string
	Lang        metric.Lang
	PreferLocal bool
	// AsOf anchors every window; zero means now.
	AsOf time.Time
}

type PayloadKind string

const (
	PayloadTrend      PayloadKind = "trend"
	PayloadComparison PayloadKind = "comparison"
	PayloadText       PayloadKind = "text"
	PayloadInsights   PayloadKind = "insights"
)

type Payload struct {
	Kind       PayloadKind           `json:"kind"`
	Trend      *aggregate.Trend      `json:"trend,omitempty"`
	Comparison *aggregate.Comparison `json:"comparison,omitempty"`
	Summary    *aggregate.Summary    `json:"summary,omitempty"`
	Insights   []insight.Insight     `json:"insights,omitempty"`
	Score      *float64              `json:"score,omitempty"`
	Text       string                `json:"text,omitempty"`
}

// TurnResult carries either a Clarification or an Intent with its Payload and
// Response.
type TurnResult struct {
	SessionID     string                      `json:"session_id"`
	Query         string                      `json:"query"`
	Intent        *intent.Intent              `json:"intent,omitempty"`
	Payload       *Payload                    `json:"payload,omitempty"`
	Response      *orchestrator.Response      `json:"response,omitempty"`
	Clarification *conversation.Clarification `json:"clarification,omitempty"`
	Insights      []insight.Insight           `json:"insights,omitempty"`
}

type Service struct {
	sessions  *conversation.Registry
	analytics Analytics
	insights  *insight.Generator
	responder Responder
	goals     map[metric.Kind]float64
	now       func() time.Time
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

type Option func(*Service)

func WithGoals(goals map[metric.Kind]float64) Option {
	return func(s *Service) { s.goals = goals }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// DefaultGoals are the daily targets used when a goal question names none.
var DefaultGoals = map[metric.Kind]float64{
	metric.Steps:              10000,
	metric.SleepDurationHours: 8,
	metric.ActiveEnergy:       500,
}

func NewService(sessions *conversation.Registry, analytics Analytics, generator *insight.Generator, responder Responder, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		analytics: analytics,
		insights:  generator,
		responder: responder,
		goals:     DefaultGoals,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Sessions() *conversation.Registry {
	return s.sessions
}

// HandleTurn answers one user message. Only invalid input, an unknown
// session, cancellation and store.ErrAuthorizationDenied are returned as
// errors; every other failure degrades the answer instead.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	started := time.Now()
	defer s.metrics.ObserveTurn(started)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return TurnResult{}, ErrEmptyQuery
	}
	lang := req.Lang
	if lang == "" {
		lang = metric.LangZH
	}

	session, err := s.session(req)
	if err != nil {
		return TurnResult{}, err
	}
	ticket, prior := session.Begin()
	defer session.Abort(ticket)

	log := s.logger.With().Str("session_id", session.ID).Logger()
	resolved := query
	if followUp, ok := resolveFollowUp(prior, query, lang); ok {
		resolved = followUp
		log.Debug().Str("resolved", resolved).Msg("clarification answered")
	}

	if decision := conversation.Check(resolved, prior, lang); !decision.CanProceed() {
		return s.clarify(ctx, session, ticket, query, resolved, *decision.Clarification)
	}

	now := s.now()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = now
	}

	result := TurnResult{SessionID: session.ID, Query: resolved}
	var facts []string
	var aggregates map[metric.Kind]aggregate.Aggregate
	parsed, ok := intent.Parse(resolved)
	if ok {
		exec, err := s.execute(ctx, s.analytics.For(session.Subject), parsed, asOf, lang)
		if err != nil {
			log.Warn().Err(err).Str("intent", parsed.String()).Msg("turn aborted")
			return TurnResult{}, err
		}
		result.Intent = &parsed
		result.Payload = &exec.payload
		result.Insights = exec.payload.Insights
		facts = exec.facts
		aggregates = exec.aggregates
	} else {
		result.Payload = &Payload{Kind: PayloadText}
	}

	resp := s.responder.Respond(ctx, orchestrator.Request{
		Prompt: orchestrator.Prompt{
			Query:   resolved,
			Lang:    lang,
			Facts:   joinFacts(facts),
			Health:  prior.RenderHealth(lang, now),
			History: turns(prior.RecentMessages(historyTurns)),
		},
		PreferLocal: req.PreferLocal,
	})
	result.Response = &resp
	if result.Payload.Kind == PayloadText && result.Payload.Text == "" {
		result.Payload.Text = resp.Content
	}

	err = session.Commit(ctx, ticket, func(c *conversation.Context) {
		c.Append(conversation.NewMessage(conversation.RoleUser, query, now))
		if result.Intent != nil {
			c.AddTopic(string(result.Intent.Kind))
		}
		updateHealth(c, aggregates, now)
		reply := conversation.NewMessage(conversation.RoleAssistant, resp.Content, s.now())
		reply.Metadata = responseMetadata(resp, result.Intent)
		c.Append(reply)
	})
	if err != nil {
		return TurnResult{}, err
	}
	log.Info().
		Str("source", string(resp.Source)).
		Str("route", string(resp.Route.Reason)).
		Bool("parsed", ok).
		Msg("turn answered")
	return result, nil
}

func (s *Service) session(req TurnRequest) (*conversation.Session, error) {
	if req.SessionID != "" {
		return s.sessions.Get(req.SessionID, req.Subject)
	}
	return s.sessions.Current(req.Subject), nil
}

// clarify records the question and the clarification in history. Health
// context is left untouched.
func (s *Service) clarify(ctx context.Context, session *conversation.Session, ticket conversation.Ticket, query, resolved string, c conversation.Clarification) (TurnResult, error) {
	s.metrics.Clarification(string(c.Ambiguity.Kind))
	now := s.now()
	err := session.Commit(ctx, ticket, func(ctxState *conversation.Context) {
		ctxState.Append(conversation.NewMessage(conversation.RoleUser, query, now))
		question := conversation.NewMessage(conversation.RoleAssistant, c.Question, now)
		question.Metadata = clarificationMetadata(resolved, c)
		ctxState.Append(question)
	})
	if err != nil {
		return TurnResult{}, err
	}
	s.logger.Info().
		Str("session_id", session.ID).
		Str("ambiguity", string(c.Ambiguity.Kind)).
		Msg("clarification requested")
	return TurnResult{SessionID: session.ID, Query: resolved, Clarification: &c}, nil
}

type execution struct {
	payload    Payload
	aggregates map[metric.Kind]aggregate.Aggregate
	facts      []string
}

// execute runs the intent against the engine. Missing data and store
// failures become facts; only fatal errors are returned.
func (s *Service) execute(ctx context.Context, engine *aggregate.Engine, in intent.Intent, asOf time.Time, lang metric.Lang) (execution, error) {
	days := in.Days
	if days < 1 {
		days = intent.DefaultDays
	}
	exec := execution{aggregates: make(map[metric.Kind]aggregate.Aggregate)}
	if err := engine.Authorize(ctx); err != nil {
		if errors.Is(err, store.ErrAuthorizationDenied) || ctx.Err() != nil {
			return exec, err
		}
		s.logger.Warn().Err(err).Msg("authorization check failed")
	}

	switch in.Kind {
	case intent.KindTrend:
		trend, err := engine.Trend(ctx, in.Metric, days, asOf)
		if err != nil {
			return exec, s.degrade(&exec, in.Metric, days, err, lang)
		}
		exec.payload = Payload{Kind: PayloadTrend, Trend: &trend}
		exec.aggregates[in.Metric] = aggregate.Aggregate{Trend: &trend}
		exec.facts = append(exec.facts, trendFact(trend, lang))

	case intent.KindCompare:
		comparison, err := engine.Compare(ctx, in.Metric, days, asOf)
		if err != nil {
			return exec, s.degrade(&exec, in.Metric, days, err, lang)
		}
		exec.payload = Payload{Kind: PayloadComparison, Comparison: &comparison}
		if trend, err := engine.Trend(ctx, in.Metric, days, asOf); err == nil {
			exec.aggregates[in.Metric] = aggregate.Aggregate{Trend: &trend, Comparison: &comparison}
		}
		exec.facts = append(exec.facts, comparisonFact(comparison, lang))

	case intent.KindSummary, intent.KindCurrentValue:
		if !in.HasMetric() {
			return s.overview(ctx, engine, in, metric.All(), days, asOf, lang, false)
		}
		summary, err := engine.Summary(ctx, in.Metric, days, asOf)
		if err != nil {
			return exec, s.degrade(&exec, in.Metric, days, err, lang)
		}
		exec.payload = Payload{Kind: PayloadText, Summary: &summary}
		exec.aggregates[in.Metric] = aggregate.Aggregate{Trend: &summary.Trend}
		if in.Kind == intent.KindCurrentValue {
			exec.facts = append(exec.facts, currentFact(summary, lang))
		} else {
			exec.facts = append(exec.facts, summaryFact(summary, lang))
		}

	case intent.KindGoal:
		return s.overview(ctx, engine, in, []metric.Kind{in.Metric}, days, asOf, lang, true)

	default:
		return s.overview(ctx, engine, in, metric.All(), days, asOf, lang, true)
	}
	return exec, nil
}

// overview fans out over kinds and turns the aggregates into ranked insights.
func (s *Service) overview(ctx context.Context, engine *aggregate.Engine, in intent.Intent, kinds []metric.Kind, days int, asOf time.Time, lang metric.Lang, withInsights bool) (execution, error) {
	aggregates, err := engine.Overview(ctx, kinds, days, asOf)
	if err != nil {
		return execution{}, err
	}
	exec := execution{aggregates: aggregates}
	for _, kind := range kinds {
		agg := aggregates[kind]
		switch {
		case agg.Usable():
			exec.facts = append(exec.facts, trendFact(*agg.Trend, lang))
			if agg.Comparison != nil {
				exec.facts = append(exec.facts, comparisonFact(*agg.Comparison, lang))
			}
		case in.Kind == intent.KindGoal:
			exec.facts = append(exec.facts, noDataFact(kind, days, lang))
		}
	}
	if !withInsights {
		exec.payload = Payload{Kind: PayloadText}
		return exec, nil
	}

	opts := insight.Options{Lang: lang, Goals: s.goals}
	if in.Kind == intent.KindGoal && in.Target != nil {
		opts.Goals = map[metric.Kind]float64{in.Metric: *in.Target}
	}
	if in.Kind == intent.KindInsights || in.Kind == intent.KindRecommendation || in.Kind == intent.KindGoal {
		opts.Focus = in.Metric
	}
	generated := s.insights.Generate(aggregates, opts)
	if in.Kind == intent.KindRecommendation {
		generated = onlyType(generated, insight.TypeRecommendation)
	}
	top := insight.Top(generated, insight.InlineLimit)
	exec.payload = Payload{Kind: PayloadInsights, Insights: top}
	if in.Kind == intent.KindOverview {
		score := insight.OverallScore(aggregates)
		exec.payload.Score = &score
		exec.facts = append(exec.facts, scoreFact(score, lang))
	}
	exec.facts = append(exec.facts, insightFacts(top)...)
	return exec, nil
}

// degrade turns a non-fatal aggregation failure into a text payload.
func (s *Service) degrade(exec *execution, kind metric.Kind, days int, err error, lang metric.Lang) error {
	if errors.Is(err, store.ErrAuthorizationDenied) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Warn().Err(err).Str("metric", string(kind)).Msg("aggregation unavailable")
	exec.payload = Payload{Kind: PayloadText}
	exec.facts = append(exec.facts, noDataFact(kind, days, lang))
	return nil
}

func onlyType(insights []insight.Insight, t insight.Type) []insight.Insight {
	var out []insight.Insight
	for _, in := range insights {
		if in.Type == t {
			out = append(out, in)
		}
	}
	if len(out) == 0 {
		return insights
	}
	return out
}

// updateHealth stores the latest aggregate of each metric in the context.
// Blood pressure is kept as one paired reading.
func updateHealth(c *conversation.Context, aggregates map[metric.Kind]aggregate.Aggregate, now time.Time) {
	for kind, agg := range aggregates {
		if !agg.Usable() {
			continue
		}
		switch kind {
		case metric.SleepDurationHours:
			c.UpdateHealth(string(kind), metric.SleepSummary{Hours: agg.Trend.Average, Nights: len(agg.Trend.Points)}, now)
		case metric.BloodPressureSystolic, metric.BloodPressureDiastolic:
			// paired below
		default:
			c.UpdateHealth(string(kind), metric.Scalar{Kind: kind, Value: agg.Trend.Average}, now)
		}
	}
	sys, okSys := aggregates[metric.BloodPressureSystolic]
	dia, okDia := aggregates[metric.BloodPressureDiastolic]
	if okSys && okDia && sys.Usable() && dia.Usable() {
		c.UpdateHealth("bloodPressure", metric.BloodPressure{Systolic: sys.Trend.Average, Diastolic: dia.Trend.Average}, now)
	} else {
		for _, agg := range []aggregate.Aggregate{sys, dia} {
			if agg.Usable() {
				c.UpdateHealth(string(agg.Trend.Metric), metric.Scalar{Kind: agg.Trend.Metric, Value: agg.Trend.Average}, now)
			}
		}
	}
}

func responseMetadata(resp orchestrator.Response, in *intent.Intent) map[string]string {
	meta := map[string]string{
		metaSource:     string(resp.Source),
		metaConfidence: strconv.FormatFloat(resp.Confidence, 'f', 2, 64),
	}
	if in != nil {
		meta[metaIntent] = in.String()
	}
	if resp.Notice != nil {
		meta[metaNotice] = string(resp.Notice.Kind)
	}
	return meta
}

func turns(messages []conversation.Message) []orchestrator.Turn {
	out := make([]orchestrator.Turn, 0, len(messages))
	for _, m := range messages {
		out = append(out, orchestrator.Turn{Role: string(m.Role), Content: m.Content})
	}
	return out
}
