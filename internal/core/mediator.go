package core

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"go.botmind.dev/internal/metrics"
)

// handlerFunc is the type-erased form of a registered handler. The
// returned value is always a Result[TRes] for the TRes the handler was
// registered with.
type handlerFunc func(ctx context.Context, req any) any

// MediatorBuilder collects handler registrations during process
// bootstrap. Registering two handlers for the same request type is a
// configuration error reported by Build, not at dispatch time.
type MediatorBuilder struct {
	handlers   map[reflect.Type]handlerFunc
	duplicates []string
}

// NewMediatorBuilder creates an empty builder.
func NewMediatorBuilder() *MediatorBuilder {
	return &MediatorBuilder{
		handlers: make(map[reflect.Type]handlerFunc),
	}
}

// Register binds a handler function to the concrete request type TReq.
// The handler boundary converts panics into Err(UNEXPECTED) so faults
// never escape into the dispatch machinery.
func Register[TReq any, TRes any](b *MediatorBuilder, handle func(ctx context.Context, req TReq) Result[TRes]) {
	reqType := reflect.TypeOf(*new(TReq))
	if _, exists := b.handlers[reqType]; exists {
		b.duplicates = append(b.duplicates, reqType.String())
		return
	}

	b.handlers[reqType] = func(ctx context.Context, req any) (out any) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Handler panic recovered", "request", reqType.String(), "panic", r)
				out = Err[TRes](UnexpectedError("handler for %s panicked: %v", reqType.String(), r))
			}
		}()
		return handle(ctx, req.(TReq))
	}
}

// Build freezes the registration table. The resulting Mediator holds no
// mutable state and is safe for concurrent and reentrant dispatch.
func (b *MediatorBuilder) Build() (*Mediator, error) {
	if len(b.duplicates) > 0 {
		sort.Strings(b.duplicates)
		return nil, fmt.Errorf("duplicate handler registration for: %v", b.duplicates)
	}
	handlers := make(map[reflect.Type]handlerFunc, len(b.handlers))
	for t, h := range b.handlers {
		handlers[t] = h
	}
	return &Mediator{handlers: handlers}, nil
}

// Mediator routes each request to the single handler registered for its
// concrete type and returns the handler's Result unchanged. It performs
// no retry, no transformation, and no logging beyond pass-through.
type Mediator struct {
	handlers map[reflect.Type]handlerFunc
}

// Validate checks that every required request type has a registered
// handler. It runs once during process bootstrap so a missing handler
// fails startup instead of the first dispatch.
func (m *Mediator) Validate(required ...any) error {
	var missing []string
	for _, req := range required {
		t := reflect.TypeOf(req)
		if _, ok := m.handlers[t]; !ok {
			missing = append(missing, t.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no handler registered for: %v", missing)
	}
	return nil
}

// Dispatch routes req to its handler and returns the handler's result.
// Every dispatch yields exactly one terminal Result: an unregistered
// type (which Validate should have caught) and a result-type mismatch
// both surface as Err(UNEXPECTED).
func Dispatch[TRes any](ctx context.Context, m *Mediator, req any) Result[TRes] {
	reqType := reflect.TypeOf(req)
	start := time.Now()

	handle, ok := m.handlers[reqType]
	if !ok {
		metrics.DispatchTotal.WithLabelValues(reqType.String(), "unregistered").Inc()
		return Err[TRes](UnexpectedError("no handler registered for %s", reqType.String()))
	}

	out := handle(ctx, req)
	res, ok := out.(Result[TRes])
	if !ok {
		metrics.DispatchTotal.WithLabelValues(reqType.String(), "type_mismatch").Inc()
		return Err[TRes](UnexpectedError("handler for %s returned %T, want %T", reqType.String(), out, Result[TRes]{}))
	}

	outcome := "ok"
	if res.IsErr() {
		outcome = "err"
	}
	metrics.DispatchTotal.WithLabelValues(reqType.String(), outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(reqType.String()).Observe(time.Since(start).Seconds())
	return res
}
