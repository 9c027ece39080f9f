// Package logpipe tails an append-only server log, parses it into typed
// events, and fans them out to subscribers on an in-process bus.
package logpipe

// Topic identifies an event kind on the Bus.
type Topic string

const (
	TopicRawLine      Topic = "raw_line"
	TopicJoin         Topic = "join"
	TopicLeave        Topic = "leave"
	TopicKick         Topic = "kick"
	TopicTrackLoaded  Topic = "track_loaded"
	TopicEventStarted Topic = "event_started"
)

// RawLine is published for every non-blank line read from the log.
type RawLine struct {
	Text string
}

// PlayerEvent is published for Join, Leave, and Kick.
type PlayerEvent struct {
	Name  string
	IsBot bool
}

// TrackLoadedEvent is published when the server reports a new track load.
type TrackLoadedEvent struct {
	TrackID string
}

// EventStartedEvent is published on the literal "Event started!" line.
type EventStartedEvent struct{}
