package metrics

import "time"

type NoopRecorder struct{}

func (NoopRecorder) ObserveDetection(string, string, time.Duration) {}
func (NoopRecorder) ObserveProviderResult(string, bool)             {}
