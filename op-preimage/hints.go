package preimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
)

// HintWriter writes hints to an io.Writer (e.g. a special file descriptor, or a debug log),
// for a pre-image oracle service to prepare specific pre-images.
type HintWriter struct {
	rw  io.ReadWriter
	log log.Logger
	err error
}

var _ Hinter = (*HintWriter)(nil)

func NewHintWriter(rw io.ReadWriter) *HintWriter {
	return &HintWriter{rw: rw, log: log.Root()}
}

// WithLogger sets the logger used to report a broken hint channel.
func (hw *HintWriter) WithLogger(logger log.Logger) *HintWriter {
	hw.log = logger
	return hw
}

// Hint writes the hint and waits for the host to acknowledge it.
// Hints are advisory: a broken hint channel never fails the caller. The first failure is
// retained, see Err, and all later hints are dropped.
func (hw *HintWriter) Hint(v Hint) {
	if hw.err != nil {
		return
	}
	hint := v.Hint()
	var hintBytes []byte
	hintBytes = binary.BigEndian.AppendUint32(hintBytes, uint32(len(hint)))
	hintBytes = append(hintBytes, []byte(hint)...)
	if _, err := hw.rw.Write(hintBytes); err != nil {
		hw.fail(fmt.Errorf("failed to write pre-image hint: %w", err), hint)
		return
	}
	var ack [1]byte
	if _, err := io.ReadFull(hw.rw, ack[:]); err != nil {
		hw.fail(fmt.Errorf("failed to read pre-image hint ack: %w", err), hint)
		return
	}
}

func (hw *HintWriter) fail(err error, hint string) {
	hw.err = err
	hw.log.Warn("Hint channel failed, dropping further hints", "hint", hint, "err", err)
}

// Err returns the first error the hint channel encountered, if any.
func (hw *HintWriter) Err() error {
	return hw.err
}

// MaxHintSize bounds the hint length the reader is willing to allocate.
const MaxHintSize = 1 << 20

var ErrHintTooLarge = errors.New("hint too large")

// HintReader reads the hints of HintWriter and passes them to a router for preparation of the requested pre-images.
// Onchain the written hints are no-op.
type HintReader struct {
	rw io.ReadWriter
}

func NewHintReader(rw io.ReadWriter) *HintReader {
	return &HintReader{rw: rw}
}

type HintHandler func(hint string) error

// NextHint reads a single hint and routes it. The acknowledgement is always written,
// so the writer is never left blocked on a hint the host failed to process.
func (hr *HintReader) NextHint(router HintHandler) error {
	var length uint32
	if err := binary.Read(hr.rw, binary.BigEndian, &length); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read hint length prefix: %w", err)
	}
	if length > MaxHintSize {
		return fmt.Errorf("%w: length %d exceeds %d", ErrHintTooLarge, length, MaxHintSize)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(hr.rw, payload); err != nil {
			return fmt.Errorf("failed to read hint payload (length %d): %w", length, err)
		}
	}
	if err := router(string(payload)); err != nil {
		_, _ = hr.rw.Write([]byte{0})
		return fmt.Errorf("failed to handle hint: %w", err)
	}
	if _, err := hr.rw.Write([]byte{0}); err != nil {
		return fmt.Errorf("failed to write trailing no-op byte to unblock hint writer: %w", err)
	}
	return nil
}
