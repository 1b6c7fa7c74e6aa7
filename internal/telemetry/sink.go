package telemetry

import "log/slog"

// Sink receives telemetry events. The advisor runtime never blocks waiting
// on a Sink — Emit is expected to be fast and non-blocking.
type Sink interface {
	Emit(Event)
}

// LogSink routes every event to a slog.Logger at Warn level, one line per
// event with its fields flattened.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a Sink that logs to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "telemetry")}
}

func (s *LogSink) Emit(evt Event) {
	switch e := evt.(type) {
	case HandleInsideQuoteError:
		s.logger.Warn(e.EventName(), "advisor", e.Advisor, "venue", e.Venue, "symbol", e.Symbol, "recovered", e.Recovered)
	case HandleInsideQuoteInvalidReturn:
		s.logger.Warn(e.EventName(), "advisor", e.Advisor, "venue", e.Venue, "symbol", e.Symbol, "returned", e.Returned)
	case HandleEventError:
		s.logger.Warn(e.EventName(), "advisor", e.Advisor, "venue", e.Venue, "symbol", e.Symbol, "recovered", e.Recovered)
	case HandleEventInvalidReturn:
		s.logger.Warn(e.EventName(), "advisor", e.Advisor, "venue", e.Venue, "symbol", e.Symbol, "returned", e.Returned)
	case OrderUpdatedError:
		s.logger.Warn(e.EventName(), "advisor", e.Advisor, "client_id", e.ClientID, "recovered", e.Recovered)
	case CancelWarning:
		s.logger.Warn(e.EventName(), "client_id", e.ClientID, "reason", e.Reason)
	default:
		s.logger.Warn(evt.EventName())
	}
}

// NopSink discards every event. Useful in tests that don't care about the
// telemetry side-channel.
type NopSink struct{}

func (NopSink) Emit(Event) {}
