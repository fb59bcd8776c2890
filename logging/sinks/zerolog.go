package sinks

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/ThePuug/closed-economy/logging"
)

// Zerolog writes events as zerolog records, mapping Severity onto levels.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog constructs a sink writing JSON records to w. When console is
// true the records are rendered through zerolog's human-readable writer.
func NewZerolog(w io.Writer, console bool) *Zerolog {
	if w == nil {
		w = io.Discard
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return &Zerolog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (s *Zerolog) Write(event logging.Event) error {
	record := s.logger.WithLevel(zerologLevel(event.Severity)).
		Str("type", string(event.Type)).
		Uint64("tick", event.Tick).
		Str("actor", formatEntity(event.Actor))
	if event.Category != "" {
		record = record.Str("category", event.Category)
	}
	if event.Seq != nil {
		record = record.Int64("seq", *event.Seq)
	}
	if len(event.Targets) > 0 {
		targets := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			targets = append(targets, formatEntity(target))
		}
		record = record.Strs("targets", targets)
	}
	if event.Payload != nil {
		record = record.Interface("payload", event.Payload)
	}
	if len(event.Extra) > 0 {
		record = record.Fields(event.Extra)
	}
	if !event.Time.IsZero() {
		record = record.Time("at", event.Time)
	}
	record.Send()
	return nil
}

func (s *Zerolog) Close(context.Context) error {
	return nil
}

func zerologLevel(sev logging.Severity) zerolog.Level {
	switch sev {
	case logging.SeverityDebug:
		return zerolog.DebugLevel
	case logging.SeverityInfo:
		return zerolog.InfoLevel
	case logging.SeverityWarn:
		return zerolog.WarnLevel
	case logging.SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.NoLevel
	}
}
