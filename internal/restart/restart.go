// Package restart implements the Smart Restart Machine: a 5-phase state
// machine that announces an upcoming restart, waits for a
// safe moment (an empty lobby, a track change, or a timeout), restarts the
// managed process, and applies the triggering event's configuration.
package restart

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/configfile"
	"github.com/raceserver/controller/internal/ctlerr"
	"github.com/raceserver/controller/internal/players"
	"github.com/raceserver/controller/internal/ports"
	"github.com/raceserver/controller/internal/schedule"
	"github.com/raceserver/controller/internal/trackstate"
)

// State is one of the five phases the machine moves through.
type State int

const (
	Idle State = iota
	Warning
	Pending
	Restarting
	Completed
)

func (s State) String() string {
	switch s {
	case Warning:
		return "warning"
	case Pending:
		return "pending"
	case Restarting:
		return "restarting"
	case Completed:
		return "completed"
	default:
		return "idle"
	}
}

const (
	defaultWarningMinutes       = 5
	defaultPendingCheckInterval = 30 * time.Second
	defaultPendingTimeout       = 10 * time.Minute
	defaultStabilizeDelay       = 2 * time.Second
	defaultCompletedDelay       = 5 * time.Second
)

// OnComplete is invoked, unlocked, once a restart finishes successfully.
type OnComplete func(event schedule.Event)

// Machine is the Smart Restart Machine. All state reads/writes go through
// a single mutex; timer callbacks and the track-change callback all
// acquire it, so at most one restart is in flight per machine. It sends
// server chat only after releasing the mutex, so it never holds the mutex
// across a supervisor call.
type Machine struct {
	Clock      clock.Clock
	Supervisor ports.ProcessSupervisor
	ConfigFile *configfile.Editor
	Players    *players.Tracker

	// ChatCommand selects the in-game console command used for restart
	// announcements: "say" (default) or "/message" -- the concrete command
	// depends on the deployment target.
	ChatCommand string

	WarningMinutes       int
	PendingCheckInterval time.Duration
	PendingTimeout       time.Duration
	StabilizeDelay       time.Duration
	CompletedDelay       time.Duration

	mu    sync.Mutex
	ready bool
	state State

	pendingEvent  *schedule.Event
	onComplete    OnComplete
	countdownLeft int

	countdownTimer clock.Timer
	pendingTicker  clock.Ticker
	pendingStop    chan struct{}
	pendingSince   time.Time
}

// Attach subscribes the machine to track-change notices so a loaded-track
// transition can end the Pending phase ("lobby detected").
func (m *Machine) Attach(tracker *trackstate.Tracker) {
	tracker.Subscribe(func(trackstate.Changed) {
		m.onTrackChanged()
	})
}

func (m *Machine) ensureDefaults() {
	if m.ready {
		return
	}
	if m.WarningMinutes == 0 {
		m.WarningMinutes = defaultWarningMinutes
	}
	if m.PendingCheckInterval == 0 {
		m.PendingCheckInterval = defaultPendingCheckInterval
	}
	if m.PendingTimeout == 0 {
		m.PendingTimeout = defaultPendingTimeout
	}
	if m.StabilizeDelay == 0 {
		m.StabilizeDelay = defaultStabilizeDelay
	}
	if m.CompletedDelay == 0 {
		m.CompletedDelay = defaultCompletedDelay
	}
	if m.ChatCommand == "" {
		m.ChatCommand = "say"
	}
	if m.Clock == nil {
		m.Clock = clock.Real{}
	}
	m.ready = true
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initiate begins orchestrating a restart for event. It is rejected
// (Conflict) unless the machine is currently Idle. When no humans are
// online it skips straight to Restarting with no countdown; otherwise it
// enters Warning and starts a countdown of WarningMinutes (5 by default).
func (m *Machine) Initiate(event schedule.Event, onComplete OnComplete) error {
	m.mu.Lock()
	m.ensureDefaults()
	if m.state != Idle {
		m.mu.Unlock()
		return ctlerr.NewConflict("restart already in progress")
	}

	m.pendingEvent = &event
	m.onComplete = onComplete

	onlineHumans := 0
	if m.Players != nil {
		onlineHumans, _ = m.Players.Count()
	}

	if onlineHumans == 0 {
		m.state = Restarting
		m.mu.Unlock()
		go m.runRestart()
		return nil
	}

	m.countdownLeft = m.WarningMinutes
	m.state = Warning
	m.startCountdownLocked()
	m.mu.Unlock()
	return nil
}

// Cancel ends an in-progress Warning or Pending phase and resets to Idle.
// It is rejected (Conflict) from any other state, including Restarting.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	switch m.state {
	case Warning:
		if m.countdownTimer != nil {
			m.countdownTimer.Stop()
		}
	case Pending:
		m.stopPendingLocked()
	default:
		s := m.state
		m.mu.Unlock()
		return ctlerr.NewConflict(fmt.Sprintf("restart cannot be cancelled from state %s", s))
	}
	m.resetToIdleLocked()
	m.mu.Unlock()

	m.broadcast("Server restart cancelled.")
	return nil
}

func (m *Machine) startCountdownLocked() {
	m.countdownTimer = m.Clock.AfterFunc(time.Minute, m.onCountdownTick)
}

func (m *Machine) onCountdownTick() {
	m.mu.Lock()
	if m.state != Warning {
		m.mu.Unlock()
		return
	}
	n := m.countdownLeft
	m.mu.Unlock()

	m.broadcast(fmt.Sprintf("Server will restart in %d minute(s).", n))

	m.mu.Lock()
	if m.state != Warning {
		m.mu.Unlock()
		return
	}
	m.countdownLeft--
	if m.countdownLeft <= 0 {
		m.state = Pending
		m.pendingSince = m.Clock.Now()
		m.startPendingLocked()
		m.mu.Unlock()
		m.broadcast("Server will restart at the next lobby.")
		return
	}
	m.startCountdownLocked()
	m.mu.Unlock()
}

func (m *Machine) startPendingLocked() {
	ticker := m.Clock.NewTicker(m.PendingCheckInterval)
	stop := make(chan struct{})
	m.pendingTicker = ticker
	m.pendingStop = stop

	go func() {
		for {
			select {
			case <-ticker.C():
				m.onPendingCheck()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Machine) stopPendingLocked() {
	if m.pendingTicker != nil {
		m.pendingTicker.Stop()
		m.pendingTicker = nil
	}
	if m.pendingStop != nil {
		close(m.pendingStop)
		m.pendingStop = nil
	}
}

func (m *Machine) onPendingCheck() {
	m.mu.Lock()
	if m.state != Pending {
		m.mu.Unlock()
		return
	}

	onlineHumans := 0
	if m.Players != nil {
		onlineHumans, _ = m.Players.Count()
	}
	elapsed := m.Clock.Now().Sub(m.pendingSince)

	switch {
	case onlineHumans == 0:
		m.transitionToRestartingLocked("")
	case elapsed >= m.PendingTimeout:
		m.transitionToRestartingLocked("Server restarting now (timeout).")
	default:
		m.mu.Unlock()
	}
}

// onTrackChanged is the "lobby detected" termination condition: a track
// reload while Pending moves straight to Restarting.
func (m *Machine) onTrackChanged() {
	m.mu.Lock()
	if m.state != Pending {
		m.mu.Unlock()
		return
	}
	m.transitionToRestartingLocked("Server restarting now.")
}

// transitionToRestartingLocked must be called with mu held; it unlocks
// before returning.
func (m *Machine) transitionToRestartingLocked(message string) {
	m.stopPendingLocked()
	m.state = Restarting
	m.mu.Unlock()

	if message != "" {
		m.broadcast(message)
	}
	go m.runRestart()
}

func (m *Machine) runRestart() {
	m.mu.Lock()
	event := m.pendingEvent
	m.mu.Unlock()

	if err := m.Supervisor.Restart(context.Background()); err != nil {
		log.Printf("[restart] process restart failed: %v", err)
		m.mu.Lock()
		m.resetToIdleLocked()
		m.mu.Unlock()
		return
	}

	m.Clock.Sleep(m.StabilizeDelay)

	if event != nil && m.ConfigFile != nil {
		if err := m.applyEventConfig(*event); err != nil {
			log.Printf("[restart] applying event %d config: %v", event.ID, err)
		}
	}

	m.mu.Lock()
	m.state = Completed
	onComplete := m.onComplete
	m.mu.Unlock()

	if onComplete != nil && event != nil {
		onComplete(*event)
	}

	m.Clock.Sleep(m.CompletedDelay)

	m.mu.Lock()
	m.resetToIdleLocked()
	m.mu.Unlock()
}

func (m *Machine) resetToIdleLocked() {
	m.state = Idle
	m.pendingEvent = nil
	m.onComplete = nil
	m.countdownLeft = 0
}

// applyEventConfig rewrites the server config file's basic section and
// tracks section per event. A field present in ServerConfig but pointing
// at an empty string is treated as "do not change" like an absent field,
// except Password, where an explicit empty string is a real value
// (clearing it).
func (m *Machine) applyEventConfig(event schedule.Event) error {
	if event.ServerConfig != nil {
		sc := event.ServerConfig
		v := &configfile.BasicValues{
			ServerName:     nonEmptyOverride(sc.ServerName),
			WelcomeMessage: nonEmptyOverride(sc.WelcomeMessage),
			Password:       sc.Password,
			MaxPlayers:     sc.MaxPlayers,
			Bots:           sc.Bots,
			AIDifficulty:   nonEmptyOverride(sc.AIDifficulty),
			Laps:           sc.Laps,
			VehicleDamage:  nonEmptyOverride(sc.VehicleDamage),
			LobbyCountdown: sc.LobbyCountdown,
		}
		if err := m.ConfigFile.WriteBasic(v); err != nil {
			return fmt.Errorf("writing basic config: %w", err)
		}
	}

	if len(event.Tracks) > 0 {
		name := event.CollectionName
		if name == "" {
			name = "Event: " + event.Name
		}
		tracks := make([]configfile.Track, len(event.Tracks))
		for i, t := range event.Tracks {
			tracks[i] = configfile.Track{
				Track:                   t.Track,
				Gamemode:                t.Gamemode,
				Laps:                    t.Laps,
				Bots:                    t.Bots,
				NumTeams:                t.NumTeams,
				CarResetDisabled:        t.CarResetDisabled,
				WrongWayLimiterDisabled: t.WrongWayLimiterDisabled,
				CarClassRestriction:     t.CarClassRestriction,
				CarRestriction:          t.CarRestriction,
				Weather:                 t.Weather,
			}
		}
		if err := m.ConfigFile.WriteTracks(name, tracks); err != nil {
			return fmt.Errorf("writing tracks: %w", err)
		}
	}
	return nil
}

func nonEmptyOverride(p *string) *string {
	if p != nil && *p == "" {
		return nil
	}
	return p
}

// broadcast sends text as server chat. Callers invoke it only after
// releasing mu, so messages go out in the order they were issued.
func (m *Machine) broadcast(text string) {
	cmd := m.formatChat(text)
	if err := m.Supervisor.SendConsoleCommand(context.Background(), cmd); err != nil {
		log.Printf("[restart] broadcasting chat: %v", err)
	}
}

func (m *Machine) formatChat(text string) string {
	switch m.ChatCommand {
	case "/message":
		return "/message " + text
	default:
		return "say " + text
	}
}
