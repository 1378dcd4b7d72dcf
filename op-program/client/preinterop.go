package client

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/boot"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/claim"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/driver"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l1"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/l2"
	"github.com/mantlenetworkio/mantle-faultproof/op-program/client/tasks"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func RunPreInteropProgram(
	ctx context.Context,
	logger log.Logger,
	bootInfo *boot.BootInfo,
	l1PreimageOracle l1.Oracle,
	l2PreimageOracle l2.Oracle,
	newTransition tasks.TransitionFactory,
	opts tasks.DerivationOptions,
) error {
	logger.Info("Program Bootstrapped", "l1Head", bootInfo.L1Head, "agreed", bootInfo.L2OutputRoot,
		"claim", bootInfo.L2Claim, "claimBlock", bootInfo.L2ClaimBlockNumber, "chainID", &bootInfo.L2ChainID)
	stf, err := newTransition(logger, bootInfo.RollupConfig, l2PreimageOracle)
	if err != nil {
		return err
	}
	result, err := tasks.RunDerivation(
		ctx,
		logger,
		tasks.ChainInputs{
			RollupConfig:     bootInfo.RollupConfig,
			L1Head:           bootInfo.L1Head,
			AgreedOutputRoot: bootInfo.L2OutputRoot,
			Target:           driver.BlockTarget(bootInfo.L2ClaimBlockNumber),
		},
		l1PreimageOracle,
		l2PreimageOracle,
		stf,
		opts,
	)
	if err != nil {
		return err
	}
	return claim.ValidateClaim(logger, eth.Bytes32(bootInfo.L2Claim), result.OutputRoot)
}
