// Package configfile edits the server's line-oriented key=value
// configuration file. It supports two independent operations: a flat
// key=value "basic" section, and a named "tracks" section delimited by a
// "# Event Loop" comment marker. Both preserve unrelated content
// byte-for-byte on write.
package configfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tracksMarkerPrefix is the comment line that starts the tracks section.
const tracksMarkerPrefix = "# Event Loop"

// knownBasicKeys maps a config file key to the BasicValues field it feeds.
// Kept as an ordered slice of (key) so callers can enumerate it, with a
// lookup set derived at init for read/write checks.
var knownBasicKeys = []string{
	"server_name", "welcome_message", "password", "max_players", "bots",
	"ai_difficulty", "laps", "vehicle_damage", "lobby_countdown", "log",
}

var knownBasicKeySet = func() map[string]bool {
	m := make(map[string]bool, len(knownBasicKeys))
	for _, k := range knownBasicKeys {
		m[k] = true
	}
	return m
}()

// BasicValues is the typed value bag for the flat key=value section.
// A nil pointer means the key was absent from the file (read) or that the
// caller does not want it changed (write).
type BasicValues struct {
	ServerName     *string
	WelcomeMessage *string
	Password       *string
	MaxPlayers     *int
	Bots           *int
	AIDifficulty   *string
	Laps           *int
	VehicleDamage  *string
	LobbyCountdown *int
	LogPath        *string

	// Extra holds every other key=value line outside the tracks section,
	// keyed exactly as it appears in the file. Read-only: WriteBasic does
	// not consult it, since it rewrites the file in place line-by-line.
	Extra map[string]string
}

// Track is a single event-loop track entry.
type Track struct {
	Track                   string
	Gamemode                *string
	Laps                    *int
	Bots                    *int
	NumTeams                *int
	CarResetDisabled        *bool
	WrongWayLimiterDisabled *bool
	CarClassRestriction     *string
	CarRestriction          *string
	Weather                 *string
}

// Editor reads and writes a single config file at Path.
type Editor struct {
	Path string
}

// NewEditor returns an Editor for the config file at path.
func NewEditor(path string) *Editor {
	return &Editor{Path: path}
}

// readLines loads the whole file into memory as a slice of lines without
// trailing newlines. The file is typically small (a few hundred lines), so
// loading it wholesale keeps the write-time line surgery simple.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// splitKV splits a "key=value" line on the first '=' only.
func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

func isTracksMarker(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), tracksMarkerPrefix)
}

// ReadBasic parses the flat key=value section, ignoring blanks, comments,
// el_* lines, and lines without '='. Lines inside (or after) the tracks
// marker are never considered part of the basic section.
func (e *Editor) ReadBasic() (*BasicValues, error) {
	lines, err := readLines(e.Path)
	if err != nil {
		return nil, err
	}

	v := &BasicValues{Extra: make(map[string]string)}

	for _, line := range lines {
		if isTracksMarker(line) {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "el_") {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		assignBasic(v, key, value)
	}

	return v, nil
}

func assignBasic(v *BasicValues, key, value string) {
	switch key {
	case "server_name":
		v.ServerName = strPtr(value)
	case "welcome_message":
		v.WelcomeMessage = strPtr(value)
	case "password":
		v.Password = strPtr(value)
	case "max_players":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			v.MaxPlayers = &n
		}
	case "bots":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			v.Bots = &n
		}
	case "ai_difficulty":
		v.AIDifficulty = strPtr(value)
	case "laps":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			v.Laps = &n
		}
	case "vehicle_damage":
		v.VehicleDamage = strPtr(value)
	case "lobby_countdown":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			v.LobbyCountdown = &n
		}
	case "log":
		v.LogPath = strPtr(value)
	default:
		if v.Extra == nil {
			v.Extra = make(map[string]string)
		}
		v.Extra[key] = value
	}
}

func strPtr(s string) *string { return &s }

// basicFieldValue returns the string to write for a known key, and whether
// the caller's BasicValues has an opinion on it (non-nil pointer).
func basicFieldValue(v *BasicValues, key string) (string, bool) {
	switch key {
	case "server_name":
		return derefStr(v.ServerName)
	case "welcome_message":
		return derefStr(v.WelcomeMessage)
	case "password":
		return derefStr(v.Password)
	case "max_players":
		return derefInt(v.MaxPlayers)
	case "bots":
		return derefInt(v.Bots)
	case "ai_difficulty":
		return derefStr(v.AIDifficulty)
	case "laps":
		return derefInt(v.Laps)
	case "vehicle_damage":
		return derefStr(v.VehicleDamage)
	case "lobby_countdown":
		return derefInt(v.LobbyCountdown)
	case "log":
		return derefStr(v.LogPath)
	default:
		return "", false
	}
}

func derefStr(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func derefInt(p *int) (string, bool) {
	if p == nil {
		return "", false
	}
	return strconv.Itoa(*p), true
}

// WriteBasic streams the existing file at e.Path line-by-line: every
// known-key line outside the tracks section whose value is present in v is
// rewritten with that value; every other line (comments, blanks, unknown
// keys, the entire tracks section) is copied byte-for-byte. The write goes
// through an atomic temp-file-then-rename.
func (e *Editor) WriteBasic(v *BasicValues) error {
	lines, err := readLines(e.Path)
	if err != nil {
		return err
	}

	inTracks := false
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !inTracks && isTracksMarker(line) {
			inTracks = true
		}
		if inTracks {
			out = append(out, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "el_") {
			out = append(out, line)
			continue
		}
		key, _, ok := splitKV(line)
		if !ok {
			out = append(out, line)
			continue
		}
		key = strings.TrimSpace(key)
		if !knownBasicKeySet[key] {
			out = append(out, line)
			continue
		}
		newVal, present := basicFieldValue(v, key)
		if !present {
			out = append(out, line)
			continue
		}
		out = append(out, key+"="+newVal)
	}

	return atomicWriteLines(e.Path, out)
}

func atomicWriteLines(path string, lines []string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			tmp.Close()
			return fmt.Errorf("writing temp file: %w", err)
		}
		if _, err := w.WriteString("\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing target: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true
	return nil
}
