package enrich

import (
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
)

// Cache lookup results reported to an Observer.
const (
	LookupHit         = "hit"
	LookupFallbackHit = "fallback_hit"
	LookupMiss        = "miss"
	LookupError       = "error"
)

// Source call results reported to an Observer.
const (
	SourceFound = "found"
	SourceEmpty = "empty"
	SourceError = "error"
)

// Observer receives counters from chains and orchestrators. The metrics
// package implements it with Prometheus collectors.
type Observer interface {
	CacheLookup(kind domain.Kind, result string)
	SourceCall(source string, kind domain.Kind, result string)
	ItemOutcome(kind domain.Kind, status domain.OutcomeStatus)
	BatchFinished(kind domain.Kind, d time.Duration)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) CacheLookup(domain.Kind, string) {}
func (NopObserver) SourceCall(string, domain.Kind, string) {}
func (NopObserver) ItemOutcome(domain.Kind, domain.OutcomeStatus) {}
func (NopObserver) BatchFinished(domain.Kind, time.Duration) {}
