package interop

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

type interopSetup struct {
	a, b    *fakeChain
	index   *LogIndex
	metrics *countingMetrics
	driver  *InteropDriver
}

func newInteropSetup(t *testing.T, targetA, targetB uint64) *interopSetup {
	logger := testlog.Logger(t, log.LevelDebug)
	a := newFakeChain(t, chainA, targetA)
	b := newFakeChain(t, chainB, targetB)
	index := NewLogIndex()
	index.AddChain(chainA, a, a)
	index.AddChain(chainB, b, b)
	m := new(countingMetrics)
	checker := NewChecker(logger, testDeps(t), allowAll(), index)
	return &interopSetup{
		a:       a,
		b:       b,
		index:   index,
		metrics: m,
		driver: NewInteropDriver(logger, alwaysActive{}, checker, index, m,
			Chain{ID: chainA, Driver: a}, Chain{ID: chainB, Driver: b}),
	}
}

func TestInteropHeldBlockBecomesValid(t *testing.T) {
	s := newInteropSetup(t, 1, 1)
	src := initiatingLog("cross chain")
	// A executes a message B only emits in its block at the same timestamp
	s.a.pending[1] = receiptsOf(executingLog(messageFor(chainB, 1, 0, src)))
	s.b.pending[1] = receiptsOf(src)

	require.NoError(t, s.driver.RunComplete(context.Background()))
	require.Equal(t, 1, s.metrics.holds)
	require.Zero(t, s.metrics.replacements)
	require.Empty(t, s.a.replaced)
	require.Equal(t, s.a.pending[1], s.a.receipt[s.a.HeadBlock().Hash()], "original block committed")
	require.Equal(t, uint64(1), s.b.HeadBlock().NumberU64())
}

func TestInteropHeldBlockBecomesInvalid(t *testing.T) {
	s := newInteropSetup(t, 1, 1)
	src := initiatingLog("cross chain")
	// B's block 1 has only one log
	s.a.pending[1] = receiptsOf(executingLog(messageFor(chainB, 1, 3, src)))
	s.b.pending[1] = receiptsOf(src)

	require.NoError(t, s.driver.RunComplete(context.Background()))
	require.Equal(t, 1, s.metrics.holds)
	require.Equal(t, 1, s.metrics.replacements)
	require.Equal(t, []uint64{1}, s.a.replaced)
	require.Empty(t, s.a.receipt[s.a.HeadBlock().Hash()], "deposits-only block committed")
}

func TestInteropSourceChainFinished(t *testing.T) {
	// B never derives block 1, so the message can never appear
	s := newInteropSetup(t, 1, 0)
	s.a.pending[1] = receiptsOf(executingLog(messageFor(chainB, 1, 0, initiatingLog("never"))))

	require.NoError(t, s.driver.RunComplete(context.Background()))
	require.Equal(t, []uint64{1}, s.a.replaced)
	require.Equal(t, uint64(1), s.a.HeadBlock().NumberU64())
}

func TestInteropValidChainsProgressInTimestampOrder(t *testing.T) {
	s := newInteropSetup(t, 3, 3)
	src := initiatingLog("early")
	s.b.pending[1] = receiptsOf(src)
	// A's block 3 executes B's block 1 message, which is derived by then
	s.a.pending[3] = receiptsOf(executingLog(messageFor(chainB, 1, 0, src)))

	require.NoError(t, s.driver.RunComplete(context.Background()))
	require.Zero(t, s.metrics.holds)
	require.Empty(t, s.a.replaced)
	require.Equal(t, uint64(3), s.a.HeadBlock().NumberU64())
	require.Equal(t, uint64(3), s.b.HeadBlock().NumberU64())
}

func TestInteropSameChainLaterBlockIsInvalid(t *testing.T) {
	s := newInteropSetup(t, 3, 0)
	src := initiatingLog("from the future")
	// A's block 1 claims a log of its own block 2, at its own timestamp
	msg := messageFor(chainA, 2, 0, src)
	msg.Identifier.Timestamp = blockTime
	s.a.pending[1] = receiptsOf(executingLog(msg))
	s.a.pending[2] = receiptsOf(src)

	require.NoError(t, s.driver.RunComplete(context.Background()))
	require.Equal(t, []uint64{1}, s.a.replaced)
	require.Equal(t, uint64(3), s.a.HeadBlock().NumberU64())
}

func TestInteropStalled(t *testing.T) {
	s := newInteropSetup(t, 1, 1)
	srcA := initiatingLog("from a")
	srcB := initiatingLog("from b")
	// both blocks wait on each other
	s.a.pending[1] = receiptsOf(srcA, executingLog(messageFor(chainB, 1, 0, srcB)))
	s.b.pending[1] = receiptsOf(srcB, executingLog(messageFor(chainA, 1, 0, srcA)))

	require.ErrorIs(t, s.driver.RunComplete(context.Background()), ErrInteropStalled)
	require.Equal(t, 2, s.metrics.holds)
}

func TestInteropSuper(t *testing.T) {
	s := newInteropSetup(t, 1, 1)
	require.NoError(t, s.driver.RunComplete(context.Background()))
	super, err := s.driver.Super(2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), super.Timestamp)
	require.Len(t, super.Chains, 2)
	require.Equal(t, chainA, super.Chains[0].ChainID)
	require.Equal(t, eth.Bytes32(s.a.HeadBlock().Hash()), super.Chains[0].Output)
	require.Equal(t, eth.Bytes32(s.b.HeadBlock().Hash()), super.Chains[1].Output)

	s.b.resultErr = errors.New("not finished")
	_, err = s.driver.Super(2)
	require.ErrorContains(t, err, "not finished")
}
