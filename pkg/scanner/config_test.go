package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blecore/blecore-go/pkg/adv"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if time.Duration(cfg.UnavailableTimeout) != DefaultUnavailableTimeout {
		t.Errorf("UnavailableTimeout = %v, want %v", cfg.UnavailableTimeout, DefaultUnavailableTimeout)
	}
	if cfg.CaptureAdvertisements {
		t.Error("CaptureAdvertisements = true, want false by default")
	}
}

func TestValidateAppliesDefault(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if time.Duration(cfg.UnavailableTimeout) != DefaultUnavailableTimeout {
		t.Errorf("UnavailableTimeout = %v, want default applied", cfg.UnavailableTimeout)
	}
}

func TestValidateRejectsTooShortTimeout(t *testing.T) {
	cfg := Config{UnavailableTimeout: Duration(time.Second)}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("Validate error = %v, want ErrInvalidTimeout", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	content := "unavailable_timeout: 5m\ncapture_advertisements: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if time.Duration(cfg.UnavailableTimeout) != 5*time.Minute {
		t.Errorf("UnavailableTimeout = %v, want 5m", cfg.UnavailableTimeout)
	}
	if !cfg.CaptureAdvertisements {
		t.Error("CaptureAdvertisements = false, want true")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig on missing file succeeded, want error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("unavailable_timeout: notaduration\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig with bad duration succeeded, want error")
	}
}

func TestReplaySource(t *testing.T) {
	src := &ReplaySource{
		Advertisements: []adv.Advertisement{
			mkAdv("AA:BB:CC:DD:EE:FF", -50),
			mkAdv("AA:BB:CC:DD:EE:FF", -55),
		},
	}

	var got []int
	if err := src.Scan(context.Background(), func(a adv.Advertisement) {
		got = append(got, a.RSSI)
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(got) != 2 || got[0] != -50 || got[1] != -55 {
		t.Errorf("replayed RSSIs = %v, want [-50 -55]", got)
	}
}

func TestPumpDelivers(t *testing.T) {
	d := newTestDispatcher(t)

	var count int
	if _, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) { count++ }); err != nil {
		t.Fatalf("RegisterAddressCallback: %v", err)
	}

	src := &ReplaySource{
		Advertisements: []adv.Advertisement{
			mkAdv("aa:bb:cc:dd:ee:ff", -50),
			mkAdv("AA:BB:CC:DD:EE:FF", -51),
		},
	}
	if err := d.Pump(context.Background(), src); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
