package ports

import "github.com/alejandrodnm/gridbot/internal/domain"

// Event is one telemetry message pushed to UI subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster fans events out to subscribers. Publish never blocks.
type Broadcaster interface {
	Publish(e Event)
}

// StatusReporter renders periodic engine status for an operator.
type StatusReporter interface {
	ReportStatus(s domain.EngineStatus)
}
