package claim

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

func TestValidateClaim(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		logger, logs := testlog.CaptureLogger(t, log.LevelInfo)
		require.NoError(t, ValidateClaim(logger, eth.Bytes32{0x11}, eth.Bytes32{0x11}))
		require.NotNil(t, logs.FindLog(testlog.NewMessageContainsFilter("matches")))
	})

	t.Run("mismatch", func(t *testing.T) {
		logger, logs := testlog.CaptureLogger(t, log.LevelInfo)
		err := ValidateClaim(logger, eth.Bytes32{0x11}, eth.Bytes32{0x22})
		require.ErrorIs(t, err, ErrClaimNotValid)
		require.NotNil(t, logs.FindLog(testlog.NewLevelFilter(log.LevelWarn)))
	})
}
