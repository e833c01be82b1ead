// Package metrics records detection metrics.
package metrics

import "time"

// Detection outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Recorder interface {
	ObserveDetection(network string, outcome string, duration time.Duration)
	ObserveProviderResult(provider string, ok bool)
}
