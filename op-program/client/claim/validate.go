package claim

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

var ErrClaimNotValid = errors.New("invalid claim")

// ValidateClaim compares the claimed root, an output root or a super root, with the root the
// program computed.
func ValidateClaim(logger log.Logger, claimed eth.Bytes32, computed eth.Bytes32) error {
	if claimed != computed {
		logger.Warn("Claim does not match computed root", "claim", claimed, "computed", computed)
		return fmt.Errorf("%w: claimed %v, computed %v", ErrClaimNotValid, claimed, computed)
	}
	logger.Info("Claim matches computed root", "root", computed)
	return nil
}
