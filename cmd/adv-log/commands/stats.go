package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/blecore/blecore-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	ErrorsByKind     map[log.ErrorKind]int
	Devices          map[string]*DeviceStats
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats holds statistics for a single device address.
type DeviceStats struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         int
	Advertisements int
	Errors         int
	Name           string
}

// Collect reads the whole log file into a Stats summary.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		ErrorsByKind:     make(map[log.ErrorKind]int),
		Devices:          make(map[string]*DeviceStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		if event.Error != nil {
			stats.ErrorsByKind[event.Error.Kind]++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.Address == "" {
			continue
		}
		dev, ok := stats.Devices[event.Address]
		if !ok {
			dev = &DeviceStats{FirstSeen: event.Timestamp}
			stats.Devices[event.Address] = dev
		}
		dev.Events++
		dev.LastSeen = event.Timestamp
		if event.DeviceName != "" {
			dev.Name = event.DeviceName
		}
		switch event.Category {
		case log.CategoryAdvertisement:
			dev.Advertisements++
		case log.CategoryError:
			dev.Errors++
		}
	}

	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	if !stats.TimeRange.Start.IsZero() {
		fmt.Fprintf(w, "Time range:   %s .. %s (%s)\n",
			stats.TimeRange.Start.UTC().Format(time.RFC3339),
			stats.TimeRange.End.UTC().Format(time.RFC3339),
			stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, cat := range []log.Category{log.CategoryAdvertisement, log.CategoryState, log.CategoryError} {
		if n := stats.EventsByCategory[cat]; n > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", cat.String(), n)
		}
	}

	if len(stats.ErrorsByKind) > 0 {
		fmt.Fprintln(w, "\nErrors by kind:")
		for _, kind := range []log.ErrorKind{log.ErrorParse, log.ErrorInvalidUpdate, log.ErrorListener} {
			if n := stats.ErrorsByKind[kind]; n > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", kind.String(), n)
			}
		}
	}

	if len(stats.Devices) > 0 {
		addresses := make([]string, 0, len(stats.Devices))
		for addr := range stats.Devices {
			addresses = append(addresses, addr)
		}
		sort.Strings(addresses)

		fmt.Fprintln(w, "\nDevices:")
		for _, addr := range addresses {
			dev := stats.Devices[addr]
			name := dev.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "  %s  %-16s adv=%d errors=%d\n", addr, name, dev.Advertisements, dev.Errors)
		}
	}

	return nil
}
