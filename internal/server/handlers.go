package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/assistant"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
)

const maxWindowDays = 365

type assistantQueryRequest struct {
	SessionID   string `json:"session_id"`
	Query       string `json:"query"`
	Lang        string `json:"lang"`
	PreferLocal *bool  `json:"prefer_local"`
	AsOf        string `json:"as_of"`
}

type networkRequest struct {
	Online *bool `json:"online"`
}

func (a *App) startSession(c *gin.Context) {
	subject := subjectFromContext(c)
	sessions := a.service.Sessions()
	session, err := sessions.Start(c.Request.Context(), subject)
	if err != nil {
		// The new session is live even when archiving the old one failed.
		a.logger.Warn().Err(err).Str("subject", subject).Msg("archive previous session failed")
	}
	a.metrics.SetActiveSessions(sessions.Len())
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"subject":    subject,
	})
}

func (a *App) endSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	sessions := a.service.Sessions()
	err := sessions.End(c.Request.Context(), sessionID, subjectFromContext(c))
	if errors.Is(err, conversation.ErrSessionNotFound) {
		writeError(c, http.StatusNotFound, "Session not found")
		return
	}
	a.metrics.SetActiveSessions(sessions.Len())
	if err != nil {
		a.logger.Error().Err(err).Str("session_id", sessionID).Msg("archive session failed")
		writeError(c, http.StatusInternalServerError, "Failed to archive session")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) assistantQuery(c *gin.Context) {
	var payload assistantQueryRequest
	if !mustJSON(c, &payload) {
		return
	}
	asOf, err := parseAsOf(payload.AsOf)
	if err != nil {
		writeError(c, http.StatusBadRequest, "as_of must be YYYY-MM-DD or RFC3339")
		return
	}
	preferLocal := a.cfg.PreferLocal
	if payload.PreferLocal != nil {
		preferLocal = *payload.PreferLocal
	}

	result, err := a.service.HandleTurn(c.Request.Context(), assistant.TurnRequest{
		Subject:     subjectFromContext(c),
		SessionID:   strings.TrimSpace(payload.SessionID),
		Query:       payload.Query,
		Lang:        metric.NormalizeLang(payload.Lang),
		PreferLocal: preferLocal,
		AsOf:        asOf,
	})
	switch {
	case errors.Is(err, assistant.ErrEmptyQuery):
		writeError(c, http.StatusBadRequest, "query is required")
		return
	case errors.Is(err, conversation.ErrSessionNotFound):
		writeError(c, http.StatusNotFound, "Session not found")
		return
	case err != nil:
		a.writeDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *App) metricTrend(c *gin.Context) {
	kind, days, asOf, ok := a.parseMetricQuery(c)
	if !ok {
		return
	}
	engine, ok := a.authorizedEngine(c)
	if !ok {
		return
	}
	trend, err := engine.Trend(c.Request.Context(), kind, days, asOf)
	if err != nil {
		a.writeDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

func (a *App) metricCompare(c *gin.Context) {
	kind, days, asOf, ok := a.parseMetricQuery(c)
	if !ok {
		return
	}
	engine, ok := a.authorizedEngine(c)
	if !ok {
		return
	}
	comparison, err := engine.Compare(c.Request.Context(), kind, days, asOf)
	if err != nil {
		a.writeDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func (a *App) metricSummary(c *gin.Context) {
	kind, days, asOf, ok := a.parseMetricQuery(c)
	if !ok {
		return
	}
	engine, ok := a.authorizedEngine(c)
	if !ok {
		return
	}
	summary, err := engine.Summary(c.Request.Context(), kind, days, asOf)
	if err != nil {
		a.writeDataError(c, err)
		return
	}
	info := metric.MustLookup(kind)
	lang := metric.NormalizeLang(c.Query("lang"))
	c.JSON(http.StatusOK, gin.H{
		"name":       info.Name(lang),
		"summary":    summary,
		"assessment": info.Assess(summary.Trend.Average),
		"formatted":  info.Format(summary.Latest),
	})
}

func (a *App) listInsights(c *gin.Context) {
	days, ok := parseDays(c)
	if !ok {
		return
	}
	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "as_of must be YYYY-MM-DD or RFC3339")
		return
	}
	var focus metric.Kind
	if raw := strings.TrimSpace(c.Query("focus")); raw != "" {
		kind, ok := metric.Parse(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, "Unknown metric: "+raw)
			return
		}
		focus = kind
	}
	engine, ok := a.authorizedEngine(c)
	if !ok {
		return
	}

	aggregates, err := engine.Overview(c.Request.Context(), metric.All(), days, a.anchor(asOf))
	if err != nil {
		a.writeDataError(c, err)
		return
	}
	insights := a.insights.Generate(aggregates, insight.Options{
		Lang:  metric.NormalizeLang(c.Query("lang")),
		Focus: focus,
		Goals: assistant.DefaultGoals,
	})
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		insights = insight.Top(insights, limit)
	}
	c.JSON(http.StatusOK, gin.H{
		"window_days": days,
		"insights":    insights,
		"score":       insight.OverallScore(aggregates),
	})
}

func (a *App) clearCache(c *gin.Context) {
	engine := a.analytics.For(subjectFromContext(c))
	raw := strings.TrimSpace(c.Query("metric"))
	if raw == "" {
		if err := engine.ClearAll(c.Request.Context()); err != nil {
			a.logger.Error().Err(err).Msg("clear cache failed")
			writeError(c, http.StatusInternalServerError, "Failed to clear cache")
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	kind, ok := metric.Parse(raw)
	if !ok {
		writeError(c, http.StatusBadRequest, "Unknown metric: "+raw)
		return
	}
	if err := engine.ClearMetric(c.Request.Context(), kind); err != nil {
		a.logger.Error().Err(err).Str("metric", string(kind)).Msg("clear cache failed")
		writeError(c, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) setNetwork(c *gin.Context) {
	if a.monitor == nil {
		writeError(c, http.StatusNotFound, "Network monitor not configured")
		return
	}
	var payload networkRequest
	if !mustJSON(c, &payload) {
		return
	}
	if payload.Online == nil {
		writeError(c, http.StatusBadRequest, "online is required")
		return
	}
	a.monitor.SetOnline(*payload.Online)
	c.JSON(http.StatusOK, gin.H{"online": a.monitor.Online()})
}

// authorizedEngine checks access before any cached result is served.
func (a *App) authorizedEngine(c *gin.Context) (*aggregate.Engine, bool) {
	engine := a.analytics.For(subjectFromContext(c))
	if err := engine.Authorize(c.Request.Context()); err != nil {
		a.writeDataError(c, err)
		return nil, false
	}
	return engine, true
}

func (a *App) writeDataError(c *gin.Context, err error) {
	var queryErr *aggregate.QueryError
	switch {
	case errors.Is(err, store.ErrAuthorizationDenied):
		writeError(c, http.StatusForbidden, "Health data access is not authorized; grant access again to continue")
	case errors.Is(err, aggregate.ErrNoData):
		writeError(c, http.StatusNotFound, "No data in the requested window")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "Request cancelled")
	case errors.As(err, &queryErr):
		a.logger.Warn().Err(err).Str("metric", string(queryErr.Metric)).Msg("store read failed")
		writeError(c, http.StatusBadGateway, "Health data is temporarily unavailable")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "Internal error")
	}
}

func (a *App) anchor(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return a.now()
	}
	return asOf
}

func (a *App) parseMetricQuery(c *gin.Context) (metric.Kind, int, time.Time, bool) {
	raw := strings.TrimSpace(c.Param("kind"))
	kind, ok := metric.Parse(raw)
	if !ok {
		writeError(c, http.StatusBadRequest, "Unknown metric: "+raw)
		return "", 0, time.Time{}, false
	}
	days, ok := parseDays(c)
	if !ok {
		return "", 0, time.Time{}, false
	}
	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "as_of must be YYYY-MM-DD or RFC3339")
		return "", 0, time.Time{}, false
	}
	return kind, days, a.anchor(asOf), true
}

func parseDays(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return intent.DefaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxWindowDays {
		writeError(c, http.StatusBadRequest, "days must be between 1 and 365")
		return 0, false
	}
	return days, true
}

// parseAsOf returns the zero time for an empty value.
func parseAsOf(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return parseDate(value)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
