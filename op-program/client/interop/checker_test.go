package interop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
	supervisortypes "github.com/mantlenetworkio/mantle-faultproof/op-supervisor/supervisor/types"
)

type queryKey struct {
	chain eth.ChainID
	id    LogID
}

type mockQuerier struct {
	results map[queryKey]LogQueryResult
	err     error
	calls   int
}

func (m *mockQuerier) Query(chainID eth.ChainID, id LogID) (LogQueryResult, error) {
	m.calls++
	if m.err != nil {
		return LogQueryResult{}, m.err
	}
	return m.results[queryKey{chainID, id}], nil
}

func (m *mockQuerier) found(chainID eth.ChainID, number uint64, logIdx uint32, l *types.Log) {
	m.results[queryKey{chainID, LogID{BlockNumber: number, LogIndex: logIdx, Timestamp: number * blockTime}}] = foundLog(l, number*blockTime)
}

func newTestChecker(t *testing.T, links LinkRules, q LogQuerier) *Checker {
	return NewChecker(testlog.Logger(t, log.LevelDebug), testDeps(t), links, q)
}

func execBlock(logs ...*types.Log) *Block {
	return &Block{ChainID: chainA, Number: 5, Timestamp: 5 * blockTime, Receipts: receiptsOf(logs...)}
}

func TestCheckerVerdicts(t *testing.T) {
	src := initiatingLog("hello")
	msg := messageFor(chainB, 3, 1, src)

	t.Run("no executing messages", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(initiatingLog("unrelated")))
		require.NoError(t, err)
		require.Equal(t, Valid, v)
		require.Zero(t, q.calls)
	})

	t.Run("found", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		q.found(chainB, 3, 1, src)
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Valid, v)
	})

	t.Run("not found yet", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Indeterminate, v)
	})

	t.Run("conclusively absent", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{
			{chainB, LogID{BlockNumber: 3, LogIndex: 1, Timestamp: 6}}: {Status: ConclusivelyAbsent},
		}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("payload mismatch", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		q.found(chainB, 3, 1, initiatingLog("other payload"))
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("origin mismatch", func(t *testing.T) {
		other := initiatingLog("hello")
		other.Address = common.Address{0x01}
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		q.found(chainB, 3, 1, other)
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("timestamp mismatch", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		res := foundLog(src, 7)
		q.results[queryKey{chainB, LogID{BlockNumber: 3, LogIndex: 1, Timestamp: 6}}] = res
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("chain outside dependency set", func(t *testing.T) {
		outside := messageFor(eth.ChainIDFromUInt64(1234), 3, 1, src)
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(outside)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
		require.Zero(t, q.calls)
	})

	t.Run("link check fails", func(t *testing.T) {
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		q.found(chainB, 3, 1, src)
		deny := LinkRulesFn(func(eth.ChainID, uint64, eth.ChainID, uint64) bool { return false })
		v, err := newTestChecker(t, deny, q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("invalid dominates indeterminate", func(t *testing.T) {
		absent := messageFor(chainB, 4, 0, src)
		q := &mockQuerier{results: map[queryKey]LogQueryResult{
			{chainB, LogID{BlockNumber: 4, LogIndex: 0, Timestamp: 8}}: {Status: ConclusivelyAbsent},
		}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg), executingLog(absent)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("malformed executing message", func(t *testing.T) {
		topics, data := msg.EncodeEvent()
		bad := &types.Log{Address: predeploys.CrossL2InboxAddr, Topics: topics, Data: data[:10]}
		v, err := newTestChecker(t, allowAll(), &mockQuerier{}).Validate(execBlock(bad))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("unknown chain in index", func(t *testing.T) {
		q := &mockQuerier{err: fmt.Errorf("%w: chain 901", supervisortypes.ErrUnknownChain)}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
	})

	t.Run("same chain later block", func(t *testing.T) {
		later := messageFor(chainA, 6, 0, src)
		later.Identifier.Timestamp = 5 * blockTime
		q := &mockQuerier{results: map[queryKey]LogQueryResult{}}
		v, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(later)))
		require.NoError(t, err)
		require.Equal(t, Invalid, v)
		require.Zero(t, q.calls)
	})

	t.Run("query failure", func(t *testing.T) {
		q := &mockQuerier{err: l2.ErrNotFound}
		_, err := newTestChecker(t, allowAll(), q).Validate(execBlock(executingLog(msg)))
		require.ErrorIs(t, err, l2.ErrNotFound)
	})
}

func TestCheckerIntraBlock(t *testing.T) {
	src := initiatingLog("same block")
	// the initiating log is log 0 of block 5 on chain A, the block being checked
	msg := messageFor(chainA, 5, 0, src)
	q := &mockQuerier{err: errors.New("must not query the index")}
	c := newTestChecker(t, allowAll(), q)

	v, err := c.Validate(execBlock(src, executingLog(msg)))
	require.NoError(t, err)
	require.Equal(t, Valid, v)

	// an executing message cannot reference itself or a later log
	self := messageFor(chainA, 5, 0, src)
	v, err = c.Validate(execBlock(executingLog(self), src))
	require.NoError(t, err)
	require.Equal(t, Invalid, v)
}

func TestVerdictWorse(t *testing.T) {
	require.Equal(t, Indeterminate, Valid.worse(Indeterminate))
	require.Equal(t, Invalid, Indeterminate.worse(Invalid))
	require.Equal(t, Invalid, Invalid.worse(Valid))
	require.Equal(t, Valid, Valid.worse(Valid))
	require.Equal(t, "indeterminate", Indeterminate.String())
}
