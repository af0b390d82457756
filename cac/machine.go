package cac

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/padflight/groundstation/protocol"
)

// Default timeouts (§6).
const (
	DefaultLegTimeout      = 2000 * time.Millisecond
	DefaultOverallTimeout  = 10000 * time.Millisecond
	DefaultConfirmDelay    = 1000 * time.Millisecond
	DefaultRetryCap        = 10
)

// Machine is the command lifecycle owner: one in-flight Request at a
// time, nonce echo verification, bounded retransmission and
// telemetry-as-parallel-acknowledgement (§4.I).
type Machine struct {
	mu    sync.Mutex
	phase Phase

	send          func([]byte)
	onStateChange func(UIState)

	legTimeout     time.Duration
	overallTimeout time.Duration
	confirmDelay   time.Duration
	retryCap       int

	request *Request

	legTimer     *time.Timer
	overallTimer *time.Timer
	confirmTimer *time.Timer

	lastError    string
	lastNackCode uint8

	// nonceCache guards against reusing a nonce across sessions, mirroring
	// NACK 0x05 defensively on the GS side (DOMAIN STACK).
	nonceCache *cache.Cache
}

// NewMachine wires the two callbacks the machine needs: send transmits
// raw command bytes, onStateChange receives the UI state after every
// transition. Timeouts default to §6's values.
func NewMachine(send func([]byte), onStateChange func(UIState)) *Machine {
	return &Machine{
		phase:          Idle,
		send:           send,
		onStateChange:  onStateChange,
		legTimeout:     DefaultLegTimeout,
		overallTimeout: DefaultOverallTimeout,
		confirmDelay:   DefaultConfirmDelay,
		retryCap:       DefaultRetryCap,
		nonceCache:     cache.New(10*time.Minute, 20*time.Minute),
	}
}

// SetTimeouts overrides the default leg/overall/confirm timeouts; tests
// use short durations to exercise retry/timeout paths without waiting
// the full flight-rated intervals.
func (m *Machine) SetTimeouts(leg, overall, confirm time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legTimeout = leg
	m.overallTimeout = overall
	m.confirmDelay = confirm
}

// Phase returns the machine's current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) canAcceptLocked() bool {
	return m.phase == Idle || m.phase == Failed
}

// CmdArm requests an arm/disarm on the given 1-indexed channel.
func (m *Machine) CmdArm(channel uint8, arm bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canAcceptLocked() {
		return ErrBusy
	}
	if channel < 1 || channel > 4 {
		return fmt.Errorf("cac: channel %d out of range 1..4", channel)
	}

	ch0 := channel - 1
	nonce := m.freshNonceLocked()
	payload := protocol.BuildArm(nonce, ch0, arm)

	m.startRequestLocked(&Request{
		Type:    CmdArmType,
		Channel: ch0,
		Arm:     arm,
		Nonce:   nonce,
		Payload: payload,
	})
	return nil
}

// CmdFire requests a fire on the given 1-indexed channel for durationMs
// (clamped to [0,255] by the command builder).
func (m *Machine) CmdFire(channel uint8, durationMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canAcceptLocked() {
		return ErrBusy
	}
	if channel < 1 || channel > 4 {
		return fmt.Errorf("cac: channel %d out of range 1..4", channel)
	}

	ch0 := channel - 1
	nonce := m.freshNonceLocked()
	payload := protocol.BuildFire(nonce, ch0, durationMs)

	dur := uint8(0)
	switch {
	case durationMs < 0:
		dur = 0
	case durationMs > 255:
		dur = 255
	default:
		dur = uint8(durationMs)
	}

	m.startRequestLocked(&Request{
		Type:       CmdFireType,
		Channel:    ch0,
		DurationMs: dur,
		Nonce:      nonce,
		Payload:    payload,
	})
	return nil
}

func (m *Machine) freshNonceLocked() uint16 {
	for i := 0; i < 8; i++ {
		n := protocol.NextNonce()
		key := fmt.Sprintf("%d", n)
		if _, found := m.nonceCache.Get(key); !found {
			m.nonceCache.SetDefault(key, struct{}{})
			return n
		}
	}
	return protocol.NextNonce()
}

func (m *Machine) startRequestLocked(req *Request) {
	m.request = req
	m.lastError = ""
	m.lastNackCode = 0

	m.setPhaseLocked(SendingCmd)
	m.send(req.Payload)
	m.setPhaseLocked(AwaitingAck)

	m.legTimer = time.AfterFunc(m.legTimeout, m.onLegTimeout)
	m.overallTimer = time.AfterFunc(m.overallTimeout, m.onOverallTimeout)
}

func (m *Machine) cancelTimersLocked() {
	if m.legTimer != nil {
		m.legTimer.Stop()
		m.legTimer = nil
	}
	if m.overallTimer != nil {
		m.overallTimer.Stop()
		m.overallTimer = nil
	}
	if m.confirmTimer != nil {
		m.confirmTimer.Stop()
		m.confirmTimer = nil
	}
}

func (m *Machine) setPhaseLocked(p Phase) {
	m.phase = p
	if m.onStateChange == nil {
		return
	}
	ui := UIState{
		Phase:      p,
		Busy:       p != Idle && p != Failed,
		Error:      m.lastError,
		NackCode:   m.lastNackCode,
		RetryCount: 0,
	}
	if m.request != nil {
		ui.CommandType = m.request.Type
		ui.TargetChannel = m.request.Channel + 1
		ui.RetryCount = m.request.RetryCount
	}
	m.onStateChange(ui)
}

func (m *Machine) failLocked(errMsg string, nackCode uint8) {
	m.cancelTimersLocked()
	m.lastError = errMsg
	m.lastNackCode = nackCode
	m.setPhaseLocked(Failed)
}

func (m *Machine) completeLocked() {
	m.cancelTimersLocked()
	m.setPhaseLocked(Complete)
	m.request = nil
	m.setPhaseLocked(Idle)
}

func (m *Machine) onLegTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != AwaitingAck || m.request == nil {
		return
	}
	if m.request.RetryCount >= m.retryCap {
		m.failLocked(fmt.Sprintf("no ACK after %d retries", m.retryCap), 0)
		return
	}

	m.request.RetryCount++
	m.send(m.request.Payload)
	m.legTimer = time.AfterFunc(m.legTimeout, m.onLegTimeout)
	m.setPhaseLocked(AwaitingAck)
}

func (m *Machine) onOverallTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Idle || m.phase == Failed || m.phase == Complete {
		return
	}
	m.failLocked("overall timeout", 0)
}

func (m *Machine) onConfirmFire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != VerifyingAck || m.request == nil {
		return
	}
	m.setPhaseLocked(SendingConfirm)
	m.send(protocol.BuildConfirm(m.request.Nonce))
	m.completeLocked()
}

func (m *Machine) advanceToVerifyingLocked() {
	if m.legTimer != nil {
		m.legTimer.Stop()
		m.legTimer = nil
	}
	m.setPhaseLocked(VerifyingAck)
	m.confirmTimer = time.AfterFunc(m.confirmDelay, m.onConfirmFire)
}

func (m *Machine) abortMismatchLocked(msg string) {
	m.send(protocol.BuildAbort(m.request.Nonce))
	m.failLocked(msg, 0)
}

// OnMessage feeds a parsed message to the machine. Messages whose nonce
// does not match the live request are silently ignored (§4.I "Nonce
// filtering").
func (m *Machine) OnMessage(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != AwaitingAck || m.request == nil {
		return
	}

	switch t := msg.(type) {
	case protocol.AckArmMessage:
		if t.Nonce != m.request.Nonce || m.request.Type != CmdArmType {
			return
		}
		wantAction := uint8(0)
		if m.request.Arm {
			wantAction = 1
		}
		if t.EchoChannel != m.request.Channel || t.EchoAction != wantAction {
			m.abortMismatchLocked(fmt.Sprintf(
				"ARM echo mismatch: want channel=%d action=%d, got channel=%d action=%d",
				m.request.Channel, wantAction, t.EchoChannel, t.EchoAction))
			return
		}
		m.advanceToVerifyingLocked()

	case protocol.AckFireMessage:
		if t.Nonce != m.request.Nonce || m.request.Type != CmdFireType {
			return
		}
		if t.EchoChannel != m.request.Channel || t.EchoDuration != m.request.DurationMs {
			m.abortMismatchLocked(fmt.Sprintf(
				"FIRE echo mismatch: want channel=%d duration=%d, got channel=%d duration=%d",
				m.request.Channel, m.request.DurationMs, t.EchoChannel, t.EchoDuration))
			return
		}
		m.advanceToVerifyingLocked()

	case protocol.NackMessage:
		if t.Nonce != m.request.Nonce {
			return
		}
		m.failLocked(fmt.Sprintf("NACK: %s", protocol.NackCodeName(t.ErrorCode)), t.ErrorCode)
	}
}

// OnTelemetryStatus implements telemetry-as-parallel-ACK for ARM/DISARM
// exchanges only (§4.I).
func (m *Machine) OnTelemetryStatus(status protocol.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != AwaitingAck || m.request == nil || m.request.Type != CmdArmType {
		return
	}
	if status.Armed[m.request.Channel] == m.request.Arm {
		m.advanceToVerifyingLocked()
	}
}

// Abort is the operator-initiated cancellation: valid from every
// non-terminal state, idempotent otherwise (§5 "Cancellation").
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Idle || m.phase == Failed || m.phase == Complete {
		return
	}

	var nonce uint16
	if m.request != nil {
		nonce = m.request.Nonce
	}
	m.send(protocol.BuildAbort(nonce))
	m.failLocked("aborted by operator", 0)
}

// Reset cancels any owned timer and discards the current request
// unconditionally, returning to idle (§5 "Cancellation").
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimersLocked()
	m.request = nil
	m.lastError = ""
	m.lastNackCode = 0
	m.setPhaseLocked(Idle)
}
