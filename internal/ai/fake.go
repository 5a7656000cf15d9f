package ai

import (
	"context"
	"sync"
)

// Fake is a scripted Generator for tests and local development. It
// returns queued replies in order, falling back to a canned reply when
// the script runs out.
type Fake struct {
	mu       sync.Mutex
	script   []string
	fallback string
	err      error
	requests []Request
}

// NewFake creates a fake generator with a default canned reply.
func NewFake(script ...string) *Fake {
	return &Fake{script: script, fallback: "(no reply scripted)"}
}

// Fail makes every subsequent Generate call return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Requests returns the requests seen so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *Fake) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.script) == 0 {
		return f.fallback, nil
	}
	reply := f.script[0]
	f.script = f.script[1:]
	return reply, nil
}

var _ Generator = (*Fake)(nil)
