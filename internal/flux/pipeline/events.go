package pipeline

import "github.com/banshee-data/flux.recovery/internal/flux"

// EventKind names a progress event.
type EventKind string

const (
	EventTrackStarted EventKind = "track_started"
	EventTrackDone    EventKind = "track_done"
	EventTrackFailed  EventKind = "track_failed" // fusion failed; statuses still reported
	EventTrackSkipped EventKind = "track_skipped"
	EventRunDone      EventKind = "run_done"
)

// ProgressEvent reports one step of a run. Done and Total count tracks.
type ProgressEvent struct {
	Kind  EventKind
	Track flux.TrackKey
	Done  int
	Total int
	Err   error
}

// Observer receives progress events. Observe is called from worker
// goroutines and must be safe for concurrent use.
type Observer interface {
	Observe(ProgressEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ProgressEvent)

// Observe calls f.
func (f ObserverFunc) Observe(e ProgressEvent) { f(e) }

// ChannelObserver forwards events to a channel. Sends block, so the
// consumer must keep draining until Close.
type ChannelObserver struct {
	ch chan ProgressEvent
}

// NewChannelObserver returns an observer with the given channel buffer.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan ProgressEvent, buffer)}
}

// Observe sends e.
func (o *ChannelObserver) Observe(e ProgressEvent) { o.ch <- e }

// Events is the receive side.
func (o *ChannelObserver) Events() <-chan ProgressEvent { return o.ch }

// Close closes the channel; call it after Run returns.
func (o *ChannelObserver) Close() { close(o.ch) }

type nopObserver struct{}

func (nopObserver) Observe(ProgressEvent) {}
