package system

import (
	"context"
	"fmt"
	"testing"
)

// recordingService notes start/stop calls, inheriting name and defaults from
// NoopService.
type recordingService struct {
	NoopService
	events  *[]string
	failure error
}

func (r recordingService) Start(context.Context) error {
	if r.failure != nil {
		return r.failure
	}
	*r.events = append(*r.events, "start:"+r.ServiceName)
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.events = append(*r.events, "stop:"+r.ServiceName)
	return nil
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"first", "second"} {
		svc := recordingService{NoopService: NoopService{ServiceName: name}, events: &events}
		if err := m.Register(svc); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:first", "start:second", "stop:second", "stop:first"}
	if len(events) != len(want) {
		t.Fatalf("got events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "cache"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "cache"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var events []string
	m := NewManager()
	ok := recordingService{NoopService: NoopService{ServiceName: "ok"}, events: &events}
	bad := recordingService{
		NoopService: NoopService{ServiceName: "bad"},
		events:      &events,
		failure:     fmt.Errorf("refused"),
	}
	if err := m.Register(ok); err != nil {
		t.Fatalf("register ok: %v", err)
	}
	if err := m.Register(bad); err != nil {
		t.Fatalf("register bad: %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail")
	}
	if len(events) != 2 || events[1] != "stop:ok" {
		t.Fatalf("expected ok to be stopped after failed start, got %v", events)
	}
}

func TestManagerRejectsRegistrationAfterStart(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "early"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "late"}); err == nil {
		t.Fatal("expected registration after start to fail")
	}
}
