package channel

import (
	"fmt"

	"github.com/sarchlab/l1chan/cache"
)

// Receiver recovers messages from the covert channel. One Receiver
// handles one session; it is not safe for concurrent use.
type Receiver struct {
	party
}

// Result is a completed receive session.
type Result struct {
	// Payload is the recovered message.
	Payload []byte

	// PreambleBitErrors is how many of the 8 preamble bits were
	// received wrong, a realized symbol-error-rate estimate for the
	// session.
	PreambleBitErrors int
}

// NewReceiver validates the parameters against the context's geometry
// and returns a Receiver in StateIdle.
func NewReceiver(ctx *cache.Context, cal cache.Calibration, params Params,
	opts ...Option) (*Receiver, error) {
	if err := params.validate(ctx.Geometry()); err != nil {
		return nil, err
	}

	r := &Receiver{party: party{ctx: ctx, cal: cal, params: params}}
	for _, opt := range opts {
		opt(&r.party)
	}

	return r, nil
}

// Receive primes the channel sets and recovers one message: 8 preamble
// bits, 8 length bits, then the length-prefixed payload. It returns with
// the receiver in StateDone, or with ErrPeerUnresponsive if any
// synchronization wait times out and ErrPreamble if the alignment check
// fails.
func (r *Receiver) Receive() (Result, error) {
	// Prime both sets so peer activity shows up as occupancy drops.
	if err := r.ctx.FillSet(r.params.DataSet); err != nil {
		return Result{}, err
	}
	if err := r.ctx.FillSet(r.params.SyncSet); err != nil {
		return Result{}, err
	}
	r.setState(StateWaitSync)

	preamble, err := r.readByte()
	if err != nil {
		return Result{}, err
	}
	result := Result{PreambleBitErrors: bitErrors(preamble, PreambleByte)}
	if result.PreambleBitErrors > preambleTolerance {
		return result, fmt.Errorf(
			"%w: received %08b, want %08b (%d bit errors)",
			ErrPreamble, preamble, byte(PreambleByte),
			result.PreambleBitErrors)
	}

	length, err := r.readByte()
	if err != nil {
		return result, err
	}

	result.Payload = make([]byte, 0, length)
	for i := 0; i < int(length); i++ {
		b, err := r.readByte()
		if err != nil {
			return result, err
		}
		result.Payload = append(result.Payload, b)
	}

	r.setState(StateDone)
	return result, nil
}

// readByte reads 8 bits, most significant first.
func (r *Receiver) readByte() (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		b = b<<1 | byte(bit)
	}
	return b, nil
}

// readBit majority-votes over Repetition sampled symbols.
func (r *Receiver) readBit() (int, error) {
	ones := 0
	for rep := 0; rep < r.params.Repetition; rep++ {
		bit, err := r.sampleSymbol()
		if err != nil {
			return 0, err
		}
		ones += bit
	}

	if ones > r.params.Repetition/2 {
		return 1, nil
	}
	return 0, nil
}

// sampleSymbol performs one handshake: wait for the sender's sync fill,
// sample the data set, and acknowledge by re-priming the sync set.
func (r *Receiver) sampleSymbol() (int, error) {
	r.setState(StateWaitSync)
	polls, err := r.waitSyncEvicted()
	if err != nil {
		return 0, err
	}

	// Our primed data lines survived for a 0; a 1 evicted them. The
	// probe's miss-reloads re-prime the set for the next symbol.
	r.setState(StateSample)
	occupancy, err := r.ctx.ProbeSet(r.params.DataSet, r.cal)
	if err != nil {
		return 0, err
	}

	bit := 0
	if occupancy <= r.ctx.Geometry().Associativity/2 {
		bit = 1
	}

	// Re-priming the sync set evicts the sender's lines: the ack.
	r.setState(StateAck)
	if err := r.ctx.FillSet(r.params.SyncSet); err != nil {
		return 0, err
	}

	if r.observer != nil {
		r.observer.SymbolReceived(r.seq, bit, occupancy, polls)
	}
	r.seq++

	return bit, nil
}

// bitErrors counts differing bits between two bytes.
func bitErrors(got, want byte) int {
	diff := got ^ want
	count := 0
	for diff != 0 {
		count += int(diff & 1)
		diff >>= 1
	}
	return count
}
