package detector

import (
	"sync"

	"go.uber.org/zap"
)

// Observer logs configuration warnings once per key.
// The caller owns it and decides how long the dedup set lives.
type Observer struct {
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewObserver(logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{logger: logger, seen: make(map[string]struct{})}
}

// WarnOnce logs msg the first time key is seen and reports whether it logged.
func (o *Observer) WarnOnce(key, msg string, fields ...zap.Field) bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	_, seen := o.seen[key]
	if !seen {
		o.seen[key] = struct{}{}
	}
	o.mu.Unlock()

	if seen {
		return false
	}
	o.logger.Warn(msg, fields...)
	return true
}
