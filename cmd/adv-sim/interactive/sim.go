// Package interactive provides the command prompt for adv-sim.
package interactive

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/blecore/blecore-go/pkg/adv"
	"github.com/blecore/blecore-go/pkg/coordinator"
	"github.com/blecore/blecore-go/pkg/log"
	"github.com/blecore/blecore-go/pkg/scanner"
)

// companyID tags the synthetic vendor payload carrying the sensor reading.
const companyID = uint16(0x004C)

// Config holds the simulator settings.
type Config struct {
	Address     string
	Name        string
	Timeout     time.Duration
	Interval    time.Duration
	CapturePath string
}

// ParseFlags parses the adv-sim command line.
func ParseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Address, "address", "AA:BB:CC:DD:EE:FF", "Simulated device address")
	flag.StringVar(&cfg.Name, "name", "Thermo Sim", "Simulated device name")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Unavailability timeout")
	flag.DurationVar(&cfg.Interval, "interval", 2*time.Second, "Emit interval for the background emitter")
	flag.StringVar(&cfg.CapturePath, "capture", "", "Write an event log (.blog) to this path")
	flag.Parse()
	return cfg
}

// reading is the decoded sensor state of the simulated device.
type reading struct {
	TemperatureC float64
	Humidity     float64
}

// Sim drives the simulated sensor through the ingestion pipeline.
type Sim struct {
	cfg        Config
	dispatcher *scanner.Dispatcher
	coord      *coordinator.Coordinator[reading]
	rl         *readline.Instance

	mu          sync.Mutex
	temperature float64
	humidity    float64
	failing     bool
	interval    time.Duration
	watchCancel func()

	// Background emitter control
	emitCtx     context.Context
	emitCancel  context.CancelFunc
	emitRunning bool

	bindings []*coordinator.EntityBinding[reading]
}

// New creates a simulator wired to the given dispatcher.
func New(cfg Config, dispatcher *scanner.Dispatcher, logger log.Logger) (*Sim, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Sim{
		cfg:         cfg,
		dispatcher:  dispatcher,
		rl:          rl,
		temperature: 21.5,
		humidity:    45,
		interval:    cfg.Interval,
	}

	coord, err := coordinator.New(coordinator.Config[reading]{
		Address:      cfg.Address,
		UpdateFunc:   decodeReading,
		Registrar:    dispatcher,
		Tracker:      dispatcher.Tracker(),
		Logger:       logger,
		ShuttingDown: dispatcher.IsShuttingDown,
	})
	if err != nil {
		rl.Close()
		return nil, err
	}
	s.coord = coord

	// Materialize entity bindings as keys show up, rendering on every update.
	coord.AddEntitiesListener(
		func(c *coordinator.Coordinator[reading], key coordinator.EntityKey, desc coordinator.EntityDescription) *coordinator.EntityBinding[reading] {
			return coordinator.NewEntityBinding(c, key, desc)
		},
		func(bindings []*coordinator.EntityBinding[reading]) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, b := range bindings {
				b := b
				b.OnRender(func() { s.renderBinding(b) })
				b.Attach()
				s.bindings = append(s.bindings, b)
				fmt.Fprintf(s.rl.Stdout(), "[ENTITY] added %s (%s)\n", b.Name(), b.UniqueID())
			}
		},
	)

	return s, nil
}

// decodeReading parses the synthetic vendor payload: a big-endian int16 in
// centidegrees followed by a humidity percentage byte.
func decodeReading(a adv.Advertisement) (*coordinator.DataUpdate[reading], error) {
	payload, ok := a.ManufacturerData[companyID]
	if !ok {
		return nil, fmt.Errorf("no vendor payload for company %#04x", companyID)
	}
	if len(payload) < 3 {
		return nil, fmt.Errorf("vendor payload too short: %d bytes", len(payload))
	}

	r := reading{
		TemperatureC: float64(int16(binary.BigEndian.Uint16(payload))) / 100,
		Humidity:     float64(payload[2]),
	}

	key := coordinator.EntityKey{Key: "temperature"}
	humKey := coordinator.EntityKey{Key: "humidity"}
	return &coordinator.DataUpdate[reading]{
		Devices: map[string]coordinator.DeviceInfo{
			"": {Name: a.Name, Manufacturer: "BLECore", Model: "Thermo Sim"},
		},
		EntityDescriptions: map[coordinator.EntityKey]coordinator.EntityDescription{
			key:    {Key: key, Name: "Temperature", DeviceClass: "temperature", Unit: "°C", StateClass: "measurement"},
			humKey: {Key: humKey, Name: "Humidity", DeviceClass: "humidity", Unit: "%", StateClass: "measurement"},
		},
		EntityNames: map[coordinator.EntityKey]string{
			key:    "Temperature",
			humKey: "Humidity",
		},
		EntityData: map[coordinator.EntityKey]reading{
			key:    r,
			humKey: r,
		},
	}, nil
}

// renderBinding prints the current value of a binding. Called on every
// update delivered for the binding's key, including unavailability.
func (s *Sim) renderBinding(b *coordinator.EntityBinding[reading]) {
	if !b.Available() {
		fmt.Fprintf(s.rl.Stdout(), "[RENDER] %s: unavailable\n", b.Name())
		return
	}
	r, ok := b.Value()
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "[RENDER] %s: no value\n", b.Name())
		return
	}
	switch b.Key().Key {
	case "humidity":
		fmt.Fprintf(s.rl.Stdout(), "[RENDER] %s: %.0f %%\n", b.Name(), r.Humidity)
	default:
		fmt.Fprintf(s.rl.Stdout(), "[RENDER] %s: %.2f °C\n", b.Name(), r.TemperatureC)
	}
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Sim) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Sim) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.stopEmitter()
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "adv", "a":
			s.cmdAdv(args)

		case "temp", "t":
			s.cmdTemp(args)

		case "hum", "h":
			s.cmdHum(args)

		case "fail":
			s.cmdFail(args)

		case "start":
			s.cmdStart()

		case "stop":
			s.cmdStop()

		case "rate":
			s.cmdRate(args)

		case "watch":
			s.cmdWatch(args)

		case "status":
			s.cmdStatus()

		case "data", "d":
			s.cmdData()

		case "entities", "e":
			s.cmdEntities()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.stopEmitter()
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Sim) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Advertisement Simulator Commands:
  Emitting:
    adv [tempC]        - Emit one advertisement (optionally at a temperature)
    start              - Start the background emitter
    stop               - Stop the background emitter
    rate <duration>    - Set the emit interval (e.g. 500ms, 2s)

  Sensor state:
    temp <celsius>     - Set the simulated temperature
    hum <percent>      - Set the simulated humidity
    fail on|off        - Emit malformed payloads (forces parse failures)

  Observation:
    status             - Show device and pipeline state
    data               - Dump accumulated entity data
    entities           - List materialized entity bindings
    watch on|off       - Print every update as it fans out

  General:
    help               - Show this help
    quit               - Exit

  Stop the emitter and wait past the timeout to watch the device
  go unavailable.`)
}

// cmdAdv emits a single advertisement.
func (s *Sim) cmdAdv(args []string) {
	if len(args) > 0 {
		t, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid temperature: %v\n", err)
			return
		}
		s.mu.Lock()
		s.temperature = t
		s.mu.Unlock()
	}
	s.emit()
	fmt.Fprintln(s.rl.Stdout(), "Advertisement emitted")
}

func (s *Sim) cmdTemp(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: temp <celsius>")
		return
	}
	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid temperature: %v\n", err)
		return
	}
	s.mu.Lock()
	s.temperature = t
	s.mu.Unlock()
	fmt.Fprintf(s.rl.Stdout(), "Temperature set to %.2f °C\n", t)
}

func (s *Sim) cmdHum(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: hum <percent>")
		return
	}
	h, err := strconv.ParseFloat(args[0], 64)
	if err != nil || h < 0 || h > 100 {
		fmt.Fprintln(s.rl.Stdout(), "Humidity must be 0-100")
		return
	}
	s.mu.Lock()
	s.humidity = h
	s.mu.Unlock()
	fmt.Fprintf(s.rl.Stdout(), "Humidity set to %.0f %%\n", h)
}

// cmdFail toggles malformed payload emission.
func (s *Sim) cmdFail(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: fail on|off")
		return
	}
	s.mu.Lock()
	s.failing = args[0] == "on"
	failing := s.failing
	s.mu.Unlock()
	if failing {
		fmt.Fprintln(s.rl.Stdout(), "Emitting malformed payloads (updates will fail, availability drops)")
	} else {
		fmt.Fprintln(s.rl.Stdout(), "Emitting valid payloads")
	}
}

func (s *Sim) cmdStart() {
	s.mu.Lock()
	if s.emitRunning {
		s.mu.Unlock()
		fmt.Fprintln(s.rl.Stdout(), "Emitter already running")
		return
	}
	s.emitCtx, s.emitCancel = context.WithCancel(context.Background())
	s.emitRunning = true
	ctx := s.emitCtx
	interval := s.interval
	s.mu.Unlock()

	go s.runEmitter(ctx, interval)
	fmt.Fprintf(s.rl.Stdout(), "Emitter started (every %s)\n", interval)
}

func (s *Sim) cmdStop() {
	s.mu.Lock()
	running := s.emitRunning
	s.mu.Unlock()
	if !running {
		fmt.Fprintln(s.rl.Stdout(), "Emitter not running")
		return
	}
	s.stopEmitter()
	fmt.Fprintf(s.rl.Stdout(), "Emitter stopped (device goes unavailable after %s of silence)\n", s.cfg.Timeout)
}

func (s *Sim) cmdRate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: rate <duration>")
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		fmt.Fprintf(s.rl.Stdout(), "Invalid interval: %s\n", args[0])
		return
	}
	s.mu.Lock()
	s.interval = d
	running := s.emitRunning
	s.mu.Unlock()
	fmt.Fprintf(s.rl.Stdout(), "Emit interval set to %s\n", d)
	if running {
		s.stopEmitter()
		s.cmdStart()
	}
}

// cmdWatch toggles a global update listener that prints every fan-out.
func (s *Sim) cmdWatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: watch on|off")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch args[0] {
	case "on":
		if s.watchCancel != nil {
			fmt.Fprintln(s.rl.Stdout(), "Already watching")
			return
		}
		s.watchCancel = s.coord.AddListener(func(update *coordinator.DataUpdate[reading]) {
			if update == nil {
				fmt.Fprintln(s.rl.Stdout(), "[UPDATE] device unavailable")
				return
			}
			for key, r := range update.EntityData {
				if key.Key == "temperature" {
					fmt.Fprintf(s.rl.Stdout(), "[UPDATE] %.2f °C / %.0f %%\n", r.TemperatureC, r.Humidity)
				}
			}
		})
		fmt.Fprintln(s.rl.Stdout(), "Watching updates")
	case "off":
		if s.watchCancel == nil {
			fmt.Fprintln(s.rl.Stdout(), "Not watching")
			return
		}
		s.watchCancel()
		s.watchCancel = nil
		fmt.Fprintln(s.rl.Stdout(), "Stopped watching")
	default:
		fmt.Fprintln(s.rl.Stdout(), "Usage: watch on|off")
	}
}

func (s *Sim) cmdStatus() {
	s.mu.Lock()
	failing := s.failing
	emitting := s.emitRunning
	interval := s.interval
	s.mu.Unlock()

	out := s.rl.Stdout()
	fmt.Fprintln(out, "\nSimulator Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Address:           %s\n", s.coord.Address())
	fmt.Fprintf(out, "  Name:              %s\n", s.coord.Name())
	fmt.Fprintf(out, "  Available:         %v\n", s.coord.Available())
	fmt.Fprintf(out, "  Present:           %v\n", s.coord.Present())
	fmt.Fprintf(out, "  LastUpdateSuccess: %v\n", s.coord.LastUpdateSuccess())
	if last := s.coord.LastSeen(); !last.IsZero() {
		fmt.Fprintf(out, "  Last seen:         %s\n", last.Format("15:04:05.000"))
	}
	fmt.Fprintf(out, "  Subscribed:        %v\n", s.coord.Running())
	fmt.Fprintf(out, "  Listeners:         %d\n", s.coord.ListenerCount())
	fmt.Fprintf(out, "  Emitter:           running=%v interval=%s failing=%v\n", emitting, interval, failing)
	fmt.Fprintln(out)
}

func (s *Sim) cmdData() {
	out := s.rl.Stdout()
	data := s.coord.EntityData()
	if len(data) == 0 {
		fmt.Fprintln(out, "No data accumulated yet (emit an advertisement first)")
		return
	}

	keys := make([]coordinator.EntityKey, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	names := s.coord.EntityNames()
	for _, k := range keys {
		r := data[k]
		fmt.Fprintf(out, "  %-16s %-14s temp=%.2f°C hum=%.0f%%\n", k.String(), names[k], r.TemperatureC, r.Humidity)
	}
	for id, info := range s.coord.Devices() {
		label := id
		if label == "" {
			label = "(main)"
		}
		fmt.Fprintf(out, "  device %-9s %s / %s %s\n", label, info.Manufacturer, info.Model, info.Name)
	}
}

func (s *Sim) cmdEntities() {
	s.mu.Lock()
	bindings := make([]*coordinator.EntityBinding[reading], len(s.bindings))
	copy(bindings, s.bindings)
	s.mu.Unlock()

	out := s.rl.Stdout()
	if len(bindings) == 0 {
		fmt.Fprintln(out, "No entities materialized yet")
		return
	}
	for _, b := range bindings {
		fmt.Fprintf(out, "  %-14s id=%s device=%s attached=%v available=%v\n",
			b.Name(), b.UniqueID(), b.DeviceIdentifier(), b.Attached(), b.Available())
	}
}

// emit delivers one advertisement through the dispatcher.
func (s *Sim) emit() {
	s.mu.Lock()
	temp := s.temperature
	hum := s.humidity
	failing := s.failing
	s.mu.Unlock()

	var payload []byte
	if failing {
		payload = []byte{0xFF}
	} else {
		payload = make([]byte, 3)
		binary.BigEndian.PutUint16(payload, uint16(int16(temp*100)))
		payload[2] = byte(hum)
	}

	s.dispatcher.Deliver(adv.Advertisement{
		Address:          s.cfg.Address,
		Name:             s.cfg.Name,
		RSSI:             -60,
		TxPower:          adv.TxPowerUnknown,
		ManufacturerData: map[uint16][]byte{companyID: payload},
	})
}

// runEmitter emits advertisements until ctx is cancelled, letting the
// temperature wander a little between packets.
func (s *Sim) runEmitter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	step := 0.05
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.temperature += step
			if s.temperature > 28 || s.temperature < 16 {
				step = -step
				s.temperature += 2 * step
			}
			s.mu.Unlock()
			s.emit()
		}
	}
}

func (s *Sim) stopEmitter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.emitRunning {
		return
	}
	if s.emitCancel != nil {
		s.emitCancel()
	}
	s.emitRunning = false
}
