package services

import (
	"time"

	"camsignal/internal/core/domain"
)

// NopMetrics discards everything. Used when Prometheus is disabled.
type NopMetrics struct{}

func (NopMetrics) RecordEvent(domain.EventType, time.Duration) {}
func (NopMetrics) RecordRelay(domain.EventType, bool)          {}
func (NopMetrics) RecordError(string)                          {}
func (NopMetrics) RecordSendDropped()                          {}
func (NopMetrics) RecordPresenceBroadcast(int)                 {}
func (NopMetrics) SetRegistryStats(domain.RegistryStats)       {}
