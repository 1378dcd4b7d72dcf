package interop

import (
	"testing"

	"github.com/stretchr/testify/require"

	supervisortypes "github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/types"
)

func TestLogIndexHistoricalBlocks(t *testing.T) {
	chain := newFakeChain(t, chainB, 10)
	src := initiatingLog("historical")
	block := chain.candidate(1, receiptsOf(initiatingLog("first"), src), 0)
	require.NoError(t, chain.Commit(block))

	index := NewLogIndex()
	index.AddChain(chainB, chain, chain)

	res, err := index.Query(chainB, LogID{BlockNumber: 1, LogIndex: 1, Timestamp: 2})
	require.NoError(t, err)
	require.Equal(t, foundLog(src, 2), res)

	res, err = index.Query(chainB, LogID{BlockNumber: 1, LogIndex: 2, Timestamp: 2})
	require.NoError(t, err)
	require.Equal(t, ConclusivelyAbsent, res.Status)
}

func TestLogIndexAcceptedBlocks(t *testing.T) {
	chain := newFakeChain(t, chainB, 10)
	index := NewLogIndex()
	index.AddChain(chainB, chain, chain)

	id := LogID{BlockNumber: 1, LogIndex: 0, Timestamp: 2}
	res, err := index.Query(chainB, id)
	require.NoError(t, err)
	require.Equal(t, NotFoundYet, res.Status)

	src := initiatingLog("accepted")
	c := chain.candidate(1, receiptsOf(src), 0)
	require.NoError(t, index.Accept(chainB, c.Block, c.Receipts))
	res, err = index.Query(chainB, id)
	require.NoError(t, err)
	require.Equal(t, Found, res.Status)
	require.Equal(t, emitter, res.Origin)

	t.Run("past the head at an elapsed timestamp", func(t *testing.T) {
		res, err := index.Query(chainB, LogID{BlockNumber: 2, LogIndex: 0, Timestamp: 2})
		require.NoError(t, err)
		require.Equal(t, ConclusivelyAbsent, res.Status)
	})

	t.Run("non-sequential block", func(t *testing.T) {
		c := chain.candidate(3, nil, 0)
		require.ErrorIs(t, index.Accept(chainB, c.Block, c.Receipts), supervisortypes.ErrConflict)
	})

	t.Run("sealed chain", func(t *testing.T) {
		index.Seal(chainB)
		res, err := index.Query(chainB, LogID{BlockNumber: 2, LogIndex: 0, Timestamp: 4})
		require.NoError(t, err)
		require.Equal(t, ConclusivelyAbsent, res.Status)
		c := chain.candidate(2, nil, 0)
		require.ErrorContains(t, index.Accept(chainB, c.Block, c.Receipts), "sealed")
	})
}

func TestLogIndexUnknownChain(t *testing.T) {
	index := NewLogIndex()
	_, err := index.Query(chainA, LogID{BlockNumber: 1})
	require.ErrorIs(t, err, supervisortypes.ErrUnknownChain)
}
