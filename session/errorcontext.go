package session

import (
	"context"
	"strings"
	"sync"
)

type errorContextKey struct{}

type errorState struct {
	activity string
	object   string
	message  string
}

// ErrorContext accumulates what a call was doing so that a failure can say so. It is
// call scoped: every session entry point resets it before returning.
//
// The ErrorContext carried by a context is a holder shared by every call made with that
// context, possibly from several goroutines. Each call records into its own ErrorContext
// and publishes a copy of its state to the holder, so errors always describe their own
// call and the holder shows the most recent activity. It is safe for concurrent use.
type ErrorContext struct {
	mu     sync.Mutex
	state  errorState
	holder *ErrorContext
}

// WithErrorContext returns ctx carrying a fresh ErrorContext.
func WithErrorContext(ctx context.Context) (context.Context, *ErrorContext) {
	ec := &ErrorContext{}
	return context.WithValue(ctx, errorContextKey{}, ec), ec
}

// ErrorContextFrom returns the ErrorContext carried by ctx, or nil.
func ErrorContextFrom(ctx context.Context) *ErrorContext {
	ec, _ := ctx.Value(errorContextKey{}).(*ErrorContext)
	return ec
}

// errorContextFor returns a call-local ErrorContext that mirrors its state into the
// holder carried by ctx, if any.
func errorContextFor(ctx context.Context) *ErrorContext {
	return &ErrorContext{holder: ErrorContextFrom(ctx)}
}

func (ec *ErrorContext) update(fn func(*errorState)) *ErrorContext {
	ec.mu.Lock()
	fn(&ec.state)
	snapshot := ec.state
	ec.mu.Unlock()

	if ec.holder != nil {
		ec.holder.update(func(s *errorState) { *s = snapshot })
	}
	return ec
}

func (ec *ErrorContext) snapshot() errorState {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.state
}

// Activity records what the call is doing.
func (ec *ErrorContext) Activity(activity string) *ErrorContext {
	return ec.update(func(s *errorState) { s.activity = activity })
}

// Object records what the call is doing it to, typically a statement id.
func (ec *ErrorContext) Object(object string) *ErrorContext {
	return ec.update(func(s *errorState) { s.object = object })
}

// Message records a free-form note.
func (ec *ErrorContext) Message(message string) *ErrorContext {
	return ec.update(func(s *errorState) { s.message = message })
}

// Reset clears the context.
func (ec *ErrorContext) Reset() {
	ec.update(func(s *errorState) { *s = errorState{} })
}

// IsEmpty reports whether nothing was recorded.
func (ec *ErrorContext) IsEmpty() bool {
	return ec.snapshot() == errorState{}
}

func (ec *ErrorContext) String() string {
	s := ec.snapshot()
	var parts []string
	if s.activity != "" {
		parts = append(parts, "while "+s.activity)
	}
	if s.object != "" {
		parts = append(parts, "object "+s.object)
	}
	if s.message != "" {
		parts = append(parts, s.message)
	}
	return strings.Join(parts, ", ")
}
