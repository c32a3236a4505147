package network

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultConnectAttempts = 10
	DefaultPollInterval    = time.Second
)

var ErrConnectivity = errors.New("wifi not connected")

// ConnectivityError reports a Connect that ran out of polls.
type ConnectivityError struct {
	SSID     string
	Attempts int
	Status   string
	Err      error
}

func (e *ConnectivityError) Error() string {
	msg := fmt.Sprintf("wifi %q not connected after %d polls (status %s)", e.SSID, e.Attempts, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectivityError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConnectivity, e.Err}
	}
	return []error{ErrConnectivity}
}

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Radio is the Wi-Fi station interface the manager drives.
type Radio interface {
	Activate() error
	IsConnected() bool
	Connect(ssid, password string) error
	Status() string
}

// Manager owns the connectivity state. It never reconnects on its own:
// callers invoke Connect at startup and EnsureConnected after a failed upload.
type Manager struct {
	radio    Radio
	ssid     string
	password string
	logger   *slog.Logger
	state    State

	Attempts     int
	PollInterval time.Duration
	Sleep        func(time.Duration)
}

func NewManager(radio Radio, ssid, password string, logger *slog.Logger) *Manager {
	return &Manager{
		radio:        radio,
		ssid:         ssid,
		password:     password,
		logger:       logger,
		state:        Disconnected,
		Attempts:     DefaultConnectAttempts,
		PollInterval: DefaultPollInterval,
		Sleep:        time.Sleep,
	}
}

func (m *Manager) State() State { return m.state }

func (m *Manager) IsConnected() bool { return m.state == Connected }

// Connect activates the radio, requests association and polls for a link up
// to Attempts times, PollInterval apart. It returns as soon as the link is up.
func (m *Manager) Connect() error {
	m.state = Connecting
	if err := m.radio.Activate(); err != nil {
		m.state = Disconnected
		return &ConnectivityError{SSID: m.ssid, Status: m.radio.Status(), Err: fmt.Errorf("activate radio: %w", err)}
	}

	var assocErr error
	if !m.radio.IsConnected() {
		m.logger.Info("connecting to wifi", "ssid", m.ssid)
		if err := m.radio.Connect(m.ssid, m.password); err != nil {
			// keep polling; the association may still complete
			assocErr = fmt.Errorf("associate: %w", err)
			m.logger.Warn("wifi association request failed", "ssid", m.ssid, "error", err)
		}
		for i := 0; i < m.Attempts; i++ {
			if m.radio.IsConnected() {
				break
			}
			m.logger.Info("waiting for wifi", "ssid", m.ssid, "poll", i+1, "status", m.radio.Status())
			m.Sleep(m.PollInterval)
		}
	}

	if !m.radio.IsConnected() {
		m.state = Disconnected
		return &ConnectivityError{SSID: m.ssid, Attempts: m.Attempts, Status: m.radio.Status(), Err: assocErr}
	}
	m.state = Connected
	m.logger.Info("wifi connected", "ssid", m.ssid, "status", m.radio.Status())
	return nil
}

// EnsureConnected is the non-fatal repair path: a no-op while the radio
// reports a link, otherwise a fresh Connect.
func (m *Manager) EnsureConnected() error {
	if m.radio.IsConnected() {
		m.state = Connected
		return nil
	}
	m.state = Disconnected
	m.logger.Info("wifi link lost, reconnecting", "ssid", m.ssid)
	return m.Connect()
}
