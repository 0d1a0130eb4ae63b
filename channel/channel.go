// Package channel implements a cross-process covert channel over the L1
// data cache using the Prime+Probe primitives from the cache package.
//
// Two set indices, agreed out of band, carry the channel. The data set
// carries one bit per symbol period: the sender fills it for a 1 and
// leaves it alone (flushing only its own lines) for a 0. The sync set
// frames symbol periods so that "no data yet" and "data = 0" cannot be
// confused.
//
// Neither party can address the other's memory; every observation is an
// occupancy drop among the observer's own primed lines. The receiver
// primes both sets and treats eviction of its sync lines as "symbol
// ready"; it samples the data set (the probe's miss-reloads re-prime it)
// and then re-primes the sync set, which evicts the sender's sync lines
// and so doubles as the acknowledgment. The handshake is half-duplex and
// lock-step: throughput is bounded by the round-trip fill/probe latency,
// not by raw cache-access latency.
//
// A message is framed as a fixed preamble byte, a one-byte payload
// length, and the payload, all bits most-significant first. The preamble
// lets the receiver check bit alignment and estimate the symbol error
// rate before trusting payload bits. Threshold misclassification under
// noise is expected; an odd per-symbol repetition count with majority
// voting is available as a reliability option.
package channel

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sarchlab/l1chan/cache"
)

// PreambleByte is the alignment pattern preceding every message.
const PreambleByte = 0xAA // 10101010

// MaxMessageLen is the largest payload a single session can carry,
// bounded by the one-byte length prefix.
const MaxMessageLen = 255

// preambleTolerance is the number of preamble bit errors accepted before
// the session is rejected as misaligned.
const preambleTolerance = 1

var (
	// ErrPeerUnresponsive is returned when a synchronization wait
	// exceeds the configured timeout. It is distinct from a
	// successfully received empty message.
	ErrPeerUnresponsive = errors.New("peer unresponsive")

	// ErrPreamble is returned when the received preamble differs from
	// the expected pattern beyond tolerance.
	ErrPreamble = errors.New("preamble mismatch")

	// ErrParams indicates invalid channel parameters.
	ErrParams = errors.New("invalid channel parameters")

	// ErrMessageTooLong indicates a payload above MaxMessageLen.
	ErrMessageTooLong = errors.New("message too long")
)

// State is a protocol party's position in the symbol handshake.
type State int32

const (
	// StateIdle is the initial state, before any cache operation.
	StateIdle State = iota

	// StateWaitSync is a wait for peer activity on the sync set.
	StateWaitSync

	// StateSample is the receiver reading the data set.
	StateSample

	// StateEmit is the sender writing the data set.
	StateEmit

	// StateAck is the acknowledgment exchange on the sync set.
	StateAck

	// StateDone is the terminal state after message completion.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitSync:
		return "WAIT_SYNC"
	case StateSample:
		return "SAMPLE"
	case StateEmit:
		return "EMIT"
	case StateAck:
		return "ACK"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Params are the out-of-band agreed channel parameters. Both parties must
// use the same DataSet and SyncSet and the same Repetition.
type Params struct {
	// DataSet is the set index carrying payload bits.
	DataSet int

	// SyncSet is the set index framing symbol periods. Must differ
	// from DataSet.
	SyncSet int

	// Timeout bounds every synchronization wait. Zero selects
	// DefaultTimeout.
	Timeout time.Duration

	// PollInterval is the pause between synchronization probes. Zero
	// means a tight loop that only yields the processor.
	PollInterval time.Duration

	// Repetition is how many times each bit is carried through the
	// handshake; the receiver majority-votes. Must be odd. Zero
	// selects 1.
	Repetition int
}

// DefaultTimeout bounds synchronization waits when Params.Timeout is
// zero.
const DefaultTimeout = 10 * time.Second

func (p *Params) validate(geom cache.Geometry) error {
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Repetition == 0 {
		p.Repetition = 1
	}

	if p.DataSet < 0 || p.DataSet >= geom.SetCount {
		return fmt.Errorf("%w: data set %d not in [0, %d)",
			ErrParams, p.DataSet, geom.SetCount)
	}
	if p.SyncSet < 0 || p.SyncSet >= geom.SetCount {
		return fmt.Errorf("%w: sync set %d not in [0, %d)",
			ErrParams, p.SyncSet, geom.SetCount)
	}
	if p.DataSet == p.SyncSet {
		return fmt.Errorf("%w: data and sync sets must differ", ErrParams)
	}
	if p.Repetition < 1 || p.Repetition%2 == 0 {
		return fmt.Errorf("%w: repetition %d must be odd",
			ErrParams, p.Repetition)
	}
	if geom.Associativity < 2 {
		return fmt.Errorf(
			"%w: associativity %d below 2, sync polling cannot work",
			ErrParams, geom.Associativity)
	}
	if p.Timeout < 0 || p.PollInterval < 0 {
		return fmt.Errorf("%w: negative duration", ErrParams)
	}

	return nil
}

// Observer receives per-symbol notifications, e.g. for trace recording.
// Methods are called from the party's own goroutine.
type Observer interface {
	// SymbolSent reports one completed sender handshake.
	SymbolSent(seq, bit, syncPolls int)

	// SymbolReceived reports one completed receiver handshake.
	SymbolReceived(seq, bit, occupancy, syncPolls int)
}

// party is the state shared by Sender and Receiver.
type party struct {
	ctx      *cache.Context
	cal      cache.Calibration
	params   Params
	observer Observer
	state    atomic.Int32
	seq      int
}

func (p *party) setState(s State) { p.state.Store(int32(s)) }

// State returns the party's current protocol state. Safe to call from
// other goroutines.
func (p *party) State() State { return State(p.state.Load()) }

// waitSyncEvicted polls a single way of the sync set until the peer's
// fill has evicted it, returning the number of polls. Polling one way
// instead of the whole set matters: a full probe would re-prime the set
// and look like this party's own signal to the peer. The single
// miss-reload on detection evicts only the peer's LRU line, which the
// peer never polls.
func (p *party) waitSyncEvicted() (int, error) {
	lastWay := p.ctx.Geometry().Associativity - 1
	deadline := time.Now().Add(p.params.Timeout)

	for polls := 1; ; polls++ {
		hit, err := p.ctx.ProbeWay(p.params.SyncSet, lastWay, p.cal)
		if err != nil {
			return polls, err
		}
		if !hit {
			return polls, nil
		}

		if time.Now().After(deadline) {
			return polls, fmt.Errorf("%w: no sync activity within %v",
				ErrPeerUnresponsive, p.params.Timeout)
		}

		if p.params.PollInterval > 0 {
			time.Sleep(p.params.PollInterval)
		} else {
			runtime.Gosched()
		}
	}
}

// Option configures a Sender or Receiver.
type Option func(*party)

// WithObserver attaches a per-symbol observer.
func WithObserver(o Observer) Option {
	return func(p *party) { p.observer = o }
}
