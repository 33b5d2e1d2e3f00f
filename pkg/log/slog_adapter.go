package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes ingestion events to an slog.Logger.
// Useful for development when you want to see events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("address", event.Address),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceName != "" {
		attrs = append(attrs, slog.String("device_name", event.DeviceName))
	}

	// Add type-specific attributes
	switch {
	case event.Adv != nil:
		attrs = append(attrs,
			slog.Int("rssi", event.Adv.RSSI),
			slog.Bool("connectable", event.Adv.Connectable),
		)
		if event.Adv.ManufacturerDataLen > 0 {
			attrs = append(attrs, slog.Int("mfg_data_len", event.Adv.ManufacturerDataLen))
		}
		if event.Adv.ServiceDataLen > 0 {
			attrs = append(attrs, slog.Int("svc_data_len", event.Adv.ServiceDataLen))
		}
		if event.Adv.ServiceCount > 0 {
			attrs = append(attrs, slog.Int("services", event.Adv.ServiceCount))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_kind", event.Error.Kind.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "ingest", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
