package main

import "log/slog"

// Broadcaster fans one state-change event out to every recipient stream.
// Delivery to one player is independent of the others: a full channel never
// blocks the broadcast, it just marks that player's stream as dead.
type Broadcaster struct {
	log *slog.Logger
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{log: log}
}

// Publish sends event to every recipient without blocking and returns the
// names whose streams could not accept it. The caller decides what to do
// with them; the session keeps their roster entries either way.
func (b *Broadcaster) Publish(event StateChange, recipients map[string]chan any) []string {
	var dead []string

	for name, stream := range recipients {
		select {
		case stream <- event:
		default:
			dead = append(dead, name)
			b.log.Debug("dropping unresponsive player stream", "player", name, "event", string(event.Type))
		}
	}

	return dead
}
