package engine

import "time"

// MetricsSink receives engine counters and timings. The prometheus
// implementation lives in internal/observability; a nil sink disables
// instrumentation.
type MetricsSink interface {
	IncBidsAccepted()
	IncBidsRejected(reason string)
	IncBidsConfirmed()
	IncAuctionsEnded()
	IncEventsDropped(component string)
	ObserveBidProcessing(d time.Duration)
	ObserveConfirmationLatency(d time.Duration)
	SetOpenAuctions(n int)
}

// engineMetrics is a nil-safe wrapper around an optional MetricsSink.
type engineMetrics struct {
	sink MetricsSink
}

func (m engineMetrics) incAccepted() {
	if m.sink != nil {
		m.sink.IncBidsAccepted()
	}
}

func (m engineMetrics) incRejected(reason string) {
	if m.sink != nil {
		m.sink.IncBidsRejected(reason)
	}
}

func (m engineMetrics) incConfirmed() {
	if m.sink != nil {
		m.sink.IncBidsConfirmed()
	}
}

func (m engineMetrics) incEnded() {
	if m.sink != nil {
		m.sink.IncAuctionsEnded()
	}
}

func (m engineMetrics) incDropped(component string) {
	if m.sink != nil {
		m.sink.IncEventsDropped(component)
	}
}

func (m engineMetrics) observeBidLatency(d time.Duration) {
	if m.sink != nil {
		m.sink.ObserveBidProcessing(d)
	}
}

func (m engineMetrics) observeConfirmationLatency(d time.Duration) {
	if m.sink != nil {
		m.sink.ObserveConfirmationLatency(d)
	}
}

func (m engineMetrics) setOpenAuctions(n int) {
	if m.sink != nil {
		m.sink.SetOpenAuctions(n)
	}
}
