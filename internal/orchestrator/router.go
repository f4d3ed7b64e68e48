package orchestrator

import (
	"strings"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
)

type Source string

const (
	SourceLocal    Source = "localModel"
	SourceRemote   Source = "remoteModel"
	SourceTemplate Source = "fallbackTemplate"
)

type RouteReason string

const (
	ReasonPreferLocal RouteReason = "preferLocal"
	ReasonOffline     RouteReason = "offline"
	ReasonPrivacy     RouteReason = "privacy"
	ReasonHealthLocal RouteReason = "healthLocal"
	ReasonDefault     RouteReason = "default"
)

type Route struct {
	Primary Source
	Reason  RouteReason
}

func (r Route) Alternate() Source {
	if r.Primary == SourceLocal {
		return SourceRemote
	}
	return SourceLocal
}

var privacyKeywords = []string{"隐私", "私密", "保密", "诊断", "药", "private", "privacy", "confidential", "diagnos", "medication"}

var healthKeywords = append([]string{"健康", "health"}, intent.MetricPhrases()...)

// route picks the primary provider. The first matching rule wins.
func route(query string, preferLocal, online bool, local ModelState) Route {
	lowered := strings.ToLower(query)
	switch {
	case preferLocal:
		return Route{Primary: SourceLocal, Reason: ReasonPreferLocal}
	case !online:
		return Route{Primary: SourceLocal, Reason: ReasonOffline}
	case containsAny(lowered, privacyKeywords):
		return Route{Primary: SourceLocal, Reason: ReasonPrivacy}
	case containsAny(lowered, healthKeywords) && (local == ModelLoaded || local == ModelLoading):
		return Route{Primary: SourceLocal, Reason: ReasonHealthLocal}
	default:
		return Route{Primary: SourceRemote, Reason: ReasonDefault}
	}
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
