// Package commands implements the adv-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/blecore/blecore-go/pkg/log"
)

// ParseCategory maps a CLI category name to a log.Category.
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "adv", "advertisement":
		return log.CategoryAdvertisement, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (supported: adv, state, error)", s)
	}
}

// RunView reads events matching filter and writes them to w in
// human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		FormatEvent(w, event)
	}
	return nil
}

// FormatEvent writes a human-readable representation of the event to w.
func FormatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [address] CATEGORY Label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Adv != nil:
		typeLabel = "Advertisement"
	case event.StateChange != nil:
		typeLabel = event.StateChange.Entity.String()
	case event.Error != nil:
		typeLabel = event.Error.Kind.String()
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [%s] %-13s %s\n", ts, event.Address, event.Category.String(), typeLabel)
	if event.DeviceName != "" {
		fmt.Fprintf(w, "  Name: %s\n", event.DeviceName)
	}

	switch {
	case event.Adv != nil:
		formatAdvDetails(w, event.Adv)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

func formatAdvDetails(w io.Writer, a *log.AdvEvent) {
	fmt.Fprintf(w, "  RSSI: %d dBm\n", a.RSSI)
	if a.ManufacturerDataLen > 0 {
		fmt.Fprintf(w, "  Manufacturer data: %d bytes\n", a.ManufacturerDataLen)
	}
	if a.ServiceDataLen > 0 {
		fmt.Fprintf(w, "  Service data: %d bytes\n", a.ServiceDataLen)
	}
	if a.ServiceCount > 0 {
		fmt.Fprintf(w, "  Services: %d\n", a.ServiceCount)
	}
	if a.Connectable {
		fmt.Fprintf(w, "  Connectable: true\n")
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}
