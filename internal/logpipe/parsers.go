package logpipe

import (
	"regexp"
	"strings"
)

var (
	joinRe  = regexp.MustCompile(`- (\*?)(.+?) has joined\.`)
	leaveRe = regexp.MustCompile(`- (\*?)(.+?) has quit`)
	kickRe  = regexp.MustCompile(`- (\*?)(.+?) kicked\.`)
	trackRe = regexp.MustCompile(`Current track loaded!\s*\(([^)]+)\)`)
)

const eventStartedMarker = "Event started!"

// parseLine runs the parsers over line in order and publishes the first
// match found; the categories are mutually exclusive in practice (a join
// line never also matches a track-load line).
func parseLine(bus *Bus, line string) {
	if m := joinRe.FindStringSubmatch(line); m != nil {
		bus.Publish(TopicJoin, PlayerEvent{Name: m[2], IsBot: m[1] == "*"})
		return
	}
	if m := leaveRe.FindStringSubmatch(line); m != nil {
		bus.Publish(TopicLeave, PlayerEvent{Name: m[2], IsBot: m[1] == "*"})
		return
	}
	if m := kickRe.FindStringSubmatch(line); m != nil {
		bus.Publish(TopicKick, PlayerEvent{Name: m[2], IsBot: m[1] == "*"})
		return
	}
	if m := trackRe.FindStringSubmatch(line); m != nil {
		bus.Publish(TopicTrackLoaded, TrackLoadedEvent{TrackID: m[1]})
		return
	}
	if strings.Contains(line, eventStartedMarker) {
		bus.Publish(TopicEventStarted, EventStartedEvent{})
	}
}
