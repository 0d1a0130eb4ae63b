package channel

import (
	"fmt"

	"github.com/sarchlab/l1chan/cache"
)

// Sender transmits messages over the covert channel. One Sender handles
// one session; it is not safe for concurrent use.
type Sender struct {
	party
}

// NewSender validates the parameters against the context's geometry and
// returns a Sender in StateIdle.
func NewSender(ctx *cache.Context, cal cache.Calibration, params Params,
	opts ...Option) (*Sender, error) {
	if err := params.validate(ctx.Geometry()); err != nil {
		return nil, err
	}

	s := &Sender{party: party{ctx: ctx, cal: cal, params: params}}
	for _, opt := range opts {
		opt(&s.party)
	}

	return s, nil
}

// Send transmits the preamble, the length prefix, and the message payload
// bit by bit, each bit repeated Repetition times. The receiver must be
// primed (waiting in its sync loop) before the first symbol is emitted,
// or the opening symbols are lost and the session times out.
//
// Send returns once the last symbol is acknowledged, leaving the sender
// in StateDone, or on the first unacknowledged symbol with
// ErrPeerUnresponsive.
func (s *Sender) Send(message []byte) error {
	if len(message) > MaxMessageLen {
		return fmt.Errorf("%w: %d bytes, limit %d",
			ErrMessageTooLong, len(message), MaxMessageLen)
	}

	frame := make([]byte, 0, 2+len(message))
	frame = append(frame, PreambleByte, byte(len(message)))
	frame = append(frame, message...)

	for _, b := range frame {
		for bit := 7; bit >= 0; bit-- {
			if err := s.sendBit(int(b>>uint(bit)) & 1); err != nil {
				return err
			}
		}
	}

	s.setState(StateDone)
	return nil
}

// sendBit carries one bit through Repetition full handshakes.
func (s *Sender) sendBit(bit int) error {
	for rep := 0; rep < s.params.Repetition; rep++ {
		if err := s.emitSymbol(bit); err != nil {
			return err
		}
	}
	return nil
}

// emitSymbol performs one handshake: encode the bit on the data set,
// signal on the sync set, and wait for the receiver's acknowledgment.
func (s *Sender) emitSymbol(bit int) error {
	s.setState(StateEmit)

	// A 1 takes the data set away from the receiver; a 0 leaves the
	// receiver's primed lines alone, flushing only our own leftovers.
	var err error
	if bit == 1 {
		err = s.ctx.FillSet(s.params.DataSet)
	} else {
		err = s.ctx.FlushSet(s.params.DataSet)
	}
	if err != nil {
		return err
	}

	// Signal "symbol ready".
	if err := s.ctx.FillSet(s.params.SyncSet); err != nil {
		return err
	}

	// The receiver's ack is its re-prime of the sync set, which evicts
	// our sync lines.
	s.setState(StateAck)
	polls, err := s.waitSyncEvicted()
	if err != nil {
		return err
	}

	if s.observer != nil {
		s.observer.SymbolSent(s.seq, bit, polls)
	}
	s.seq++

	return nil
}
