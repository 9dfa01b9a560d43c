package domain

import "time"

// TransitionEvent describes one committed stage transition. Events
// are published on the in-process bus after the store write succeeds
// and are never persisted themselves.
type TransitionEvent struct {
	UserID  string
	From    Stage
	To      Stage
	Trigger string
	At      time.Time
}

// TopicTransition is the event-bus topic for TransitionEvent.
const TopicTransition = "protocol.transition"
