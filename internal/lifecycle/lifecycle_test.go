package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingService struct {
	name     string
	startErr error
	health   error
	log      *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.log.add("start " + s.name)
	<-ctx.Done()
	return nil
}

func (s *recordingService) Stop(ctx context.Context) error {
	s.log.add("stop " + s.name)
	return nil
}

func (s *recordingService) Health() error { return s.health }

func TestSupervisorStartsInOrderStopsInReverse(t *testing.T) {
	log := &eventLog{}
	a := &recordingService{name: "a", log: log}
	b := &recordingService{name: "b", log: log}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSupervisor(a, b).Run(ctx)
	}()

	time.Sleep(300 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestSupervisorAbortsOnStartupFailure(t *testing.T) {
	log := &eventLog{}
	a := &recordingService{name: "a", log: log}
	b := &recordingService{name: "b", startErr: errors.New("port in use"), log: log}
	c := &recordingService{name: "c", log: log}

	err := NewSupervisor(a, b, c).Run(context.Background())
	if err == nil {
		t.Fatal("expected startup failure to surface")
	}

	for _, e := range log.snapshot() {
		if e == "start c" {
			t.Error("service after the failed one must not start")
		}
	}
	got := log.snapshot()
	if got[len(got)-1] != "stop a" {
		t.Errorf("expected already-started services stopped, events %v", got)
	}
}

func TestSupervisorRejectsSecondRun(t *testing.T) {
	log := &eventLog{}
	s := NewSupervisor(&recordingService{name: "a", log: log})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(200 * time.Millisecond)

	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error for concurrent Run")
	}
	cancel()
	<-done
}

func TestSupervisorHealth(t *testing.T) {
	log := &eventLog{}
	healthy := &recordingService{name: "ok", log: log}
	broken := &recordingService{name: "broken", health: errors.New("down"), log: log}

	if err := NewSupervisor(healthy).Health(); err != nil {
		t.Errorf("expected healthy supervisor, got %v", err)
	}
	if err := NewSupervisor(healthy, broken).Health(); err == nil {
		t.Error("expected unhealthy service to fail the roll-up")
	}
}

func TestServiceFunc(t *testing.T) {
	var stopped bool
	svc := NewServiceFunc("probe",
		func(ctx context.Context) error { <-ctx.Done(); return nil },
		func(ctx context.Context) error { stopped = true; return nil },
	).WithHealth(func() error { return errors.New("not ready") })

	if svc.Name() != "probe" {
		t.Errorf("unexpected name %q", svc.Name())
	}
	if err := svc.Health(); err == nil {
		t.Error("expected health probe error")
	}
	if err := svc.Stop(context.Background()); err != nil || !stopped {
		t.Errorf("Stop: err=%v stopped=%v", err, stopped)
	}
}
