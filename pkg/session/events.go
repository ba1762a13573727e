package session

import "github.com/3leaps/bucketnav/pkg/browse"

// EventKind classifies a view update.
type EventKind string

const (
	EventNavigated        EventKind = "navigated"
	EventSelectionChanged EventKind = "selection_changed"
	EventListingLoaded    EventKind = "listing_loaded"
	EventMutated          EventKind = "mutated"
)

// Event is delivered to subscribers after a state change.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

// Snapshot is a read-only copy of a session's view state.
type Snapshot struct {
	ID         string          `json:"id" yaml:"id"`
	Bucket     string          `json:"bucket" yaml:"bucket"`
	Prefix     browse.Prefix   `json:"prefix" yaml:"prefix"`
	Pos        int             `json:"pos" yaml:"pos"`
	History    []browse.Prefix `json:"history" yaml:"history"`
	Selected   []string        `json:"selected" yaml:"selected"`
	CanBack    bool            `json:"can_back" yaml:"can_back"`
	CanForward bool            `json:"can_forward" yaml:"can_forward"`
	Generation uint64          `json:"generation" yaml:"generation"`
}

// Observer receives events. It is called without the session lock held and
// may call back into the session.
type Observer func(Event)
