package network

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeRadio reports a link once IsConnected has been asked connectAfter times
// since the last Connect. connectAfter <= 0 never connects.
type fakeRadio struct {
	up           bool
	connectAfter int
	polls        int
	associating  bool
	activateErr  error
	connectErr   error
	connectCalls int
	observe      func()
}

func (r *fakeRadio) Activate() error { return r.activateErr }

func (r *fakeRadio) IsConnected() bool {
	if r.observe != nil {
		r.observe()
	}
	if r.up {
		return true
	}
	if !r.associating {
		return false
	}
	r.polls++
	if r.connectAfter > 0 && r.polls >= r.connectAfter {
		r.up = true
	}
	return r.up
}

func (r *fakeRadio) Connect(ssid, password string) error {
	r.connectCalls++
	r.associating = true
	r.polls = 0
	return r.connectErr
}

func (r *fakeRadio) Status() string { return "fake" }

func newTestManager(r Radio) (*Manager, *[]time.Duration) {
	m := NewManager(r, "lab", "secret", discard)
	var sleeps []time.Duration
	m.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return m, &sleeps
}

func TestConnectSucceedsOnThirdPoll(t *testing.T) {
	r := &fakeRadio{connectAfter: 3}
	m, sleeps := newTestManager(r)
	if m.State() != Disconnected {
		t.Fatalf("initial state: %v", m.State())
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if m.State() != Connected || !m.IsConnected() {
		t.Fatalf("state after connect: %v", m.State())
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 waits before poll 3, got %d", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != time.Second {
			t.Fatalf("poll interval: %v", d)
		}
	}
}

func TestConnectReportsConnectingWhilePolling(t *testing.T) {
	r := &fakeRadio{connectAfter: 3}
	m, _ := newTestManager(r)
	var seen []State
	r.observe = func() { seen = append(seen, m.State()) }

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// one check before associating, three polls, then the final check
	if len(seen) != 5 {
		t.Fatalf("IsConnected calls: %d", len(seen))
	}
	for i, s := range seen {
		if s != Connecting {
			t.Fatalf("state during check %d: %v", i, s)
		}
	}
	if m.State() != Connected {
		t.Fatalf("state after connect: %v", m.State())
	}
}

func TestConnectExhaustsPolls(t *testing.T) {
	r := &fakeRadio{}
	m, sleeps := newTestManager(r)
	err := m.Connect()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("error should match ErrConnectivity: %v", err)
	}
	var ce *ConnectivityError
	if !errors.As(err, &ce) || ce.Attempts != 10 || ce.SSID != "lab" {
		t.Fatalf("unexpected error detail: %#v", err)
	}
	if len(*sleeps) != 10 {
		t.Fatalf("expected 10 waits, got %d", len(*sleeps))
	}
	if m.State() != Disconnected {
		t.Fatalf("state after failure: %v", m.State())
	}
}

func TestConnectAlreadyAssociated(t *testing.T) {
	r := &fakeRadio{up: true}
	m, sleeps := newTestManager(r)
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if r.connectCalls != 0 || len(*sleeps) != 0 {
		t.Fatalf("should not associate when already up: calls=%d sleeps=%d", r.connectCalls, len(*sleeps))
	}
}

func TestConnectActivateFailure(t *testing.T) {
	r := &fakeRadio{activateErr: errors.New("rfkill")}
	m, _ := newTestManager(r)
	err := m.Connect()
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if r.connectCalls != 0 {
		t.Fatalf("should not associate when activation fails")
	}
}

func TestConnectAssociationErrorStillPolls(t *testing.T) {
	r := &fakeRadio{connectAfter: 1, connectErr: errors.New("busy")}
	m, _ := newTestManager(r)
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestEnsureConnected(t *testing.T) {
	r := &fakeRadio{up: true}
	m, _ := newTestManager(r)
	if err := m.EnsureConnected(); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if r.connectCalls != 0 {
		t.Fatalf("no-op expected while connected")
	}
	if m.State() != Connected {
		t.Fatalf("state: %v", m.State())
	}

	// link drops; reconnect succeeds on first poll
	r.up = false
	r.associating = false
	r.connectAfter = 1
	if err := m.EnsureConnected(); err != nil {
		t.Fatalf("EnsureConnected after drop: %v", err)
	}
	if r.connectCalls != 1 || m.State() != Connected {
		t.Fatalf("reconnect: calls=%d state=%v", r.connectCalls, m.State())
	}

	// link drops and never comes back: error, not panic
	r.up = false
	r.associating = false
	r.connectAfter = 0
	if err := m.EnsureConnected(); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if m.State() != Disconnected {
		t.Fatalf("state: %v", m.State())
	}
}

func TestStaticRadio(t *testing.T) {
	m, sleeps := newTestManager(StaticRadio{})
	if err := m.Connect(); err != nil || !m.IsConnected() || len(*sleeps) != 0 {
		t.Fatalf("static radio: err=%v state=%v", err, m.State())
	}
}
