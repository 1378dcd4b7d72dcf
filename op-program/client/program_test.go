package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/mantle-faultproof/op-preimage"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/claim"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/testlog"
)

func TestExitCode(t *testing.T) {
	logger := testlog.Logger(t, log.LevelDebug)
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"accepted", nil, ExitAccepted},
		{"invalid claim", fmt.Errorf("wrapped: %w", claim.ErrClaimNotValid), ExitRejected},
		{"target not reached", fmt.Errorf("run: %w", driver.ErrTargetNotReached), ExitRejected},
		{"missing preimage", fmt.Errorf("load: %w", preimage.ErrNotFound), ExitFailed},
		{"other", errors.New("boom"), ExitFailed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.code, ExitCode(logger, test.err))
		})
	}
}
