package logpipe

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/raceserver/controller/internal/clock"
)

// defaultPollInterval is the fallback poll cadence driving the same read
// path as the filesystem watcher.
const defaultPollInterval = 2 * time.Second

// defaultWatchDebounce coalesces bursts of filesystem-change notifications
// before triggering a read.
const defaultWatchDebounce = 100 * time.Millisecond

// tryLockTimeout bounds how long a tick waits for the cursor mutex before
// skipping itself -- contention is safe to drop since the next tick (poll
// or watch) covers the same ground.
const tryLockTimeout = 50 * time.Millisecond

// Cursor is the (path, position) pair describing how far a Tailer has
// consumed a growing log file. Position is a byte offset, never larger
// than the file size: truncation resets it to zero.
type Cursor struct {
	Path     string
	Position int64
}

// Tailer monitors an append-only text log, publishing RawLine and parsed
// events on a Bus as new lines appear. Each appended line is observed at
// most once across the lifetime of a cursor; lines that straddle a read
// boundary are never split.
type Tailer struct {
	bus   *Bus
	clock clock.Clock

	// PollInterval and WatchDebounce override the default poll cadence
	// and watcher debounce when set before Start.
	PollInterval  time.Duration
	WatchDebounce time.Duration

	mu       chan struct{} // 1-buffered channel used as a try-lock
	position int64
	path     string

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewTailer returns a Tailer that will read path once Start is called. c
// may be nil to use the real clock.
func NewTailer(bus *Bus, c clock.Clock) *Tailer {
	if c == nil {
		c = clock.Real{}
	}
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Tailer{bus: bus, clock: c, mu: mu}
}

// Start seeds the cursor at path's current length (or 0 if it doesn't yet
// exist), installs a directory watcher plus a 2s poll, and begins tailing.
// It returns once the initial position is seeded; reading happens on a
// background goroutine until Stop is called.
func (t *Tailer) Start(path string) error {
	t.path = path
	if info, err := os.Stat(path); err == nil {
		t.position = info.Size()
	} else {
		t.position = 0
	}

	t.stop = make(chan struct{})
	t.stopped = make(chan struct{})

	go t.run()
	return nil
}

// Cursor returns a snapshot of the current (path, position).
func (t *Tailer) Cursor() Cursor {
	select {
	case <-t.mu:
		defer func() { t.mu <- struct{}{} }()
	case <-time.After(tryLockTimeout):
	}
	return Cursor{Path: t.path, Position: t.position}
}

// Stop halts the watcher and poll loop and waits for the background
// goroutine to exit.
func (t *Tailer) Stop() {
	t.once.Do(func() {
		if t.stop != nil {
			close(t.stop)
		}
	})
	if t.stopped != nil {
		<-t.stopped
	}
}

func (t *Tailer) run() {
	defer close(t.stopped)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[logpipe] creating watcher: %v", err)
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(t.path)); err != nil {
			log.Printf("[logpipe] watching %s: %v", filepath.Dir(t.path), err)
		}
	}

	poll := t.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	debounceDelay := t.WatchDebounce
	if debounceDelay <= 0 {
		debounceDelay = defaultWatchDebounce
	}

	ticker := t.clock.NewTicker(poll)
	defer ticker.Stop()

	var debounce clock.Timer
	signal := make(chan struct{}, 1)
	sendSignal := func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-t.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C():
			t.tick()

		case <-signal:
			t.tick()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = t.clock.AfterFunc(debounceDelay, sendSignal)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[logpipe] watcher error: %v", err)
		}
	}
}

// tick performs one read pass: try-lock the cursor, detect truncation,
// read whole lines from the current position, publish them, and advance
// the position. It is safe to call concurrently from the poll ticker and
// the debounced watcher signal; contention simply skips the tick.
func (t *Tailer) tick() {
	select {
	case <-t.mu:
	case <-time.After(tryLockTimeout):
		return
	}
	defer func() { t.mu <- struct{}{} }()

	f, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[logpipe] opening %s: %v", t.path, err)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Printf("[logpipe] stat %s: %v", t.path, err)
		return
	}
	if info.Size() < t.position {
		t.position = 0
	}

	if _, err := f.Seek(t.position, io.SeekStart); err != nil {
		log.Printf("[logpipe] seeking %s: %v", t.path, err)
		return
	}

	reader := bufio.NewReader(f)
	offset := t.position
	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			break
		}
		if err == io.EOF && len(line) > 0 {
			// Partial line at EOF: don't consume it yet, wait for the
			// rest to arrive on a later tick; lines are never split.
			break
		}
		offset += int64(len(line))
		text := trimLineEnding(line)
		if text != "" {
			t.bus.Publish(TopicRawLine, RawLine{Text: text})
			parseLine(t.bus, text)
		}
		if err != nil {
			break
		}
	}
	t.position = offset
}

func trimLineEnding(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
