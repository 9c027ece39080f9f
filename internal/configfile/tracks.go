package configfile

import (
	"fmt"
	"strconv"
	"strings"
)

const collectionNamePrefix = "#CollectionName "

// el_* keys recognized within a track entry, including the "el_" prefix.
const (
	elAdd                     = "el_add"
	elGamemode                = "el_gamemode"
	elLaps                    = "el_laps"
	elBots                    = "el_bots"
	elNumTeams                = "el_numteams"
	elCarResetDisabled        = "el_carresetdisabled"
	elWrongWayLimiterDisabled = "el_wrongwaylimiterdisabled"
	elCarClassRestriction     = "el_carclassrestriction"
	elCarRestriction          = "el_carrestriction"
	elWeather                 = "el_weather"
)

// ReadTracks returns the collection name and ordered track entries from the
// tracks section. Commented-out entries ("#el_add=..." etc.) are recovered
// by stripping the leading '#'.
func (e *Editor) ReadTracks() (collectionName string, tracks []Track, err error) {
	lines, err := readLines(e.Path)
	if err != nil {
		return "", nil, err
	}

	idx := -1
	for i, line := range lines {
		if isTracksMarker(line) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", nil, nil
	}

	var current *Track
	for _, raw := range lines[idx+1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, collectionNamePrefix) {
			collectionName = strings.TrimSpace(strings.TrimPrefix(line, collectionNamePrefix))
			continue
		}
		decoded := line
		if strings.HasPrefix(decoded, "#") {
			decoded = strings.TrimSpace(strings.TrimPrefix(decoded, "#"))
		}
		key, value, ok := splitKV(decoded)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == elAdd {
			if current != nil {
				tracks = append(tracks, *current)
			}
			current = &Track{Track: value}
			continue
		}
		if current == nil {
			continue
		}
		assignTrackField(current, key, value)
	}
	if current != nil {
		tracks = append(tracks, *current)
	}

	return collectionName, tracks, nil
}

func assignTrackField(t *Track, key, value string) {
	switch key {
	case elGamemode:
		t.Gamemode = strPtr(value)
	case elLaps:
		if n, err := strconv.Atoi(value); err == nil {
			t.Laps = &n
		}
	case elBots:
		if n, err := strconv.Atoi(value); err == nil {
			t.Bots = &n
		}
	case elNumTeams:
		if n, err := strconv.Atoi(value); err == nil {
			t.NumTeams = &n
		}
	case elCarResetDisabled:
		if b, err := strconv.ParseBool(value); err == nil {
			t.CarResetDisabled = &b
		}
	case elWrongWayLimiterDisabled:
		if b, err := strconv.ParseBool(value); err == nil {
			t.WrongWayLimiterDisabled = &b
		}
	case elCarClassRestriction:
		t.CarClassRestriction = strPtr(value)
	case elCarRestriction:
		t.CarRestriction = strPtr(value)
	case elWeather:
		t.Weather = strPtr(value)
	}
}

// WriteTracks replaces the tracks section with the given collection name and
// track entries. Lines up to and including the "# Event Loop" marker are
// kept verbatim; contiguous leading comment lines in the header that are not
// "## Add" headers and do not decode to el_* entries are preserved too (the
// existing #CollectionName line, if any, is dropped and replaced). Every
// prior track entry is discarded.
func (e *Editor) WriteTracks(collectionName string, tracks []Track) error {
	lines, err := readLines(e.Path)
	if err != nil {
		return err
	}

	markerIdx := -1
	for i, line := range lines {
		if isTracksMarker(line) {
			markerIdx = i
			break
		}
	}

	out := make([]string, 0, len(lines)+len(tracks)*4)
	if markerIdx < 0 {
		out = append(out, lines...)
		out = append(out, tracksMarkerPrefix)
	} else {
		out = append(out, lines[:markerIdx+1]...)
	}

	if markerIdx >= 0 {
		for _, raw := range lines[markerIdx+1:] {
			trimmed := strings.TrimSpace(raw)
			if trimmed == "" {
				break
			}
			if !strings.HasPrefix(trimmed, "#") {
				break
			}
			if strings.HasPrefix(trimmed, collectionNamePrefix) {
				continue
			}
			if strings.HasPrefix(trimmed, "## Add") {
				break
			}
			decoded := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			if key, _, ok := splitKV(decoded); ok && strings.HasPrefix(strings.TrimSpace(key), "el_") {
				break
			}
			out = append(out, raw)
		}
	}

	out = append(out, "")
	if collectionName != "" {
		out = append(out, collectionNamePrefix+collectionName)
	}

	for i, t := range tracks {
		out = append(out, "")
		out = append(out, fmt.Sprintf("## Add event %d to Loop", i+1))
		out = append(out, elAdd+"="+t.Track)
		if t.Gamemode != nil {
			out = append(out, elGamemode+"="+*t.Gamemode)
		}
		if t.Laps != nil {
			out = append(out, elLaps+"="+strconv.Itoa(*t.Laps))
		}
		if t.Bots != nil {
			out = append(out, elBots+"="+strconv.Itoa(*t.Bots))
		}
		if t.NumTeams != nil {
			out = append(out, elNumTeams+"="+strconv.Itoa(*t.NumTeams))
		}
		if t.CarResetDisabled != nil {
			out = append(out, elCarResetDisabled+"="+strconv.FormatBool(*t.CarResetDisabled))
		}
		if t.WrongWayLimiterDisabled != nil {
			out = append(out, elWrongWayLimiterDisabled+"="+strconv.FormatBool(*t.WrongWayLimiterDisabled))
		}
		if t.CarClassRestriction != nil {
			out = append(out, elCarClassRestriction+"="+*t.CarClassRestriction)
		}
		if t.CarRestriction != nil {
			out = append(out, elCarRestriction+"="+*t.CarRestriction)
		}
		if t.Weather != nil {
			out = append(out, elWeather+"="+*t.Weather)
		}
	}

	return atomicWriteLines(e.Path, out)
}
