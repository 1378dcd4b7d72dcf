package preimage

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type rawHint string

func (rh rawHint) Hint() string {
	return string(rh)
}

func TestHints(t *testing.T) {
	// Note: pretty much every string is valid communication:
	// length, payload, 0. Worst case you run out of data, or allocate too much.
	testHint := func(hints ...string) {
		a, b := CreateMemoryChannel()
		defer a.Close()
		defer b.Close()

		hw := NewHintWriter(a)
		hr := NewHintReader(b)

		var got []string
		var eg errgroup.Group
		eg.Go(func() error {
			for range hints {
				if err := hr.NextHint(func(hint string) error {
					got = append(got, hint)
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		for _, h := range hints {
			hw.Hint(rawHint(h))
		}
		require.NoError(t, eg.Wait())
		require.NoError(t, hw.Err())
		require.Equal(t, len(hints), len(got))
		for i, h := range hints {
			require.Equal(t, h, got[i])
		}
	}

	t.Run("empty hint", func(t *testing.T) {
		testHint("")
	})
	t.Run("hello world", func(t *testing.T) {
		testHint("hello world")
	})
	t.Run("zero byte", func(t *testing.T) {
		testHint(string([]byte{0}))
	})
	t.Run("many zeroes", func(t *testing.T) {
		testHint(string(make([]byte, 1000)))
	})
	t.Run("random data", func(t *testing.T) {
		dat := make([]byte, 1000)
		_, _ = rand.Read(dat[:])
		testHint(string(dat))
	})
	t.Run("multiple hints", func(t *testing.T) {
		testHint("give me header a", "also header b", "foo bar")
	})
	t.Run("unexpected EOF", func(t *testing.T) {
		var buf bytes.Buffer
		hw := NewHintWriter(bufferedReadWriter{Reader: &buf, Writer: &buf})
		hw.Hint(rawHint("hello"))
		_, _ = buf.Read(make([]byte, 1)) // read one byte so it falls short, see if it's detected
		hr := NewHintReader(bufferedReadWriter{Reader: &buf, Writer: io.Discard})
		err := hr.NextHint(func(hint string) error { return nil })
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
	t.Run("cb error", func(t *testing.T) {
		a, b := CreateMemoryChannel()
		defer a.Close()
		defer b.Close()
		hw := NewHintWriter(a)
		hr := NewHintReader(b)
		cbErr := errors.New("fail")
		var eg errgroup.Group
		eg.Go(func() error {
			err := hr.NextHint(func(hint string) error { return cbErr })
			if !errors.Is(err, cbErr) {
				return errors.New("expected callback error")
			}
			return nil
		})
		// the writer is unblocked by the ack even though the host failed
		hw.Hint(rawHint("one"))
		require.NoError(t, eg.Wait())
		require.NoError(t, hw.Err())
	})
}

func TestHintReaderRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	var ack bytes.Buffer
	hr := NewHintReader(bufferedReadWriter{Reader: &buf, Writer: &ack})
	called := false
	err := hr.NextHint(func(hint string) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrHintTooLarge)
	require.False(t, called)
	require.Zero(t, ack.Len())

	// the largest accepted length still reads
	hint := make([]byte, MaxHintSize)
	buf.Reset()
	buf.Write([]byte{0x00, 0x10, 0x00, 0x00})
	buf.Write(hint)
	var got string
	require.NoError(t, hr.NextHint(func(h string) error {
		got = h
		return nil
	}))
	require.Len(t, got, MaxHintSize)
	require.Equal(t, []byte{0}, ack.Bytes())
}

func TestHintWriterDropsAfterFailure(t *testing.T) {
	writeErr := errors.New("no host")
	hw := NewHintWriter(bufferedReadWriter{Reader: new(bytes.Buffer), Writer: failingWriter{writeErr}})
	hw.Hint(rawHint("one"))
	require.ErrorIs(t, hw.Err(), writeErr)
	// never panics or blocks the caller
	hw.Hint(rawHint("two"))
	require.ErrorIs(t, hw.Err(), writeErr)
}
