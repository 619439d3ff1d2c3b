// Package navigation is the boundary between the session layer and whatever shows
// pages to the user. Components ask for a route change; the console decides how to
// perform it.
package navigation

import (
	"context"
	"sync"
)

// Navigator performs a route change, e.g. to "/login".
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

type recorderKey struct{}

// Recorder collects the route requested while one console request is being handled.
type Recorder struct {
	mu    sync.Mutex
	route string
}

func (r *Recorder) Route() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.route, r.route != ""
}

// WithRecorder attaches a fresh Recorder to ctx.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	recorder := &Recorder{}
	return context.WithValue(ctx, recorderKey{}, recorder), recorder
}

// RecorderFrom returns the Recorder attached to ctx, if any.
func RecorderFrom(ctx context.Context) (*Recorder, bool) {
	recorder, ok := ctx.Value(recorderKey{}).(*Recorder)
	return recorder, ok
}

// ContextNavigator stores the requested route in the Recorder of the request
// context. Requests without a Recorder ignore navigation.
type ContextNavigator struct{}

func (ContextNavigator) Navigate(ctx context.Context, route string) {
	recorder, ok := RecorderFrom(ctx)
	if !ok {
		return
	}
	recorder.mu.Lock()
	recorder.route = route
	recorder.mu.Unlock()
}
