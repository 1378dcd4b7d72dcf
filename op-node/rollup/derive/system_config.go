package derive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/solabi"
)

var (
	SystemConfigUpdateBatcher           = common.Hash{31: 0}
	SystemConfigUpdateGasConfig         = common.Hash{31: 1}
	SystemConfigUpdateGasLimit          = common.Hash{31: 2}
	SystemConfigUpdateUnsafeBlockSigner = common.Hash{31: 3}
)

var (
	ConfigUpdateEventABI      = "ConfigUpdate(uint256,uint8,bytes)"
	ConfigUpdateEventABIHash  = crypto.Keccak256Hash([]byte(ConfigUpdateEventABI))
	ConfigUpdateEventVersion0 = common.Hash{}
)

var errSystemConfigLog = errors.New("malformed system config log")

// UpdateSystemConfigWithL1Receipts filters all L1 receipts to find config updates and applies the config updates to the given sysCfg
func UpdateSystemConfigWithL1Receipts(sysCfg *eth.SystemConfig, receipts []*types.Receipt, cfg *rollup.Config, l1Time uint64) error {
	var result error
	for i, rec := range receipts {
		if rec.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for j, log := range rec.Logs {
			if log.Address == cfg.L1SystemConfigAddress && len(log.Topics) > 0 && log.Topics[0] == ConfigUpdateEventABIHash {
				if err := ProcessSystemConfigUpdateLogEvent(sysCfg, log, cfg, l1Time); err != nil {
					result = multierror.Append(result, fmt.Errorf("malformatted L1 system sysCfg log in receipt %d, log %d: %w", i, j, err))
				}
			}
		}
	}
	return result
}

// ProcessSystemConfigUpdateLogEvent decodes an EVM log entry emitted by the system config contract and applies it as a system config change.
//
// parse log data for:
//
//	event ConfigUpdate(
//	    uint256 indexed version,
//	    UpdateType indexed updateType,
//	    bytes data
//	);
func ProcessSystemConfigUpdateLogEvent(destSysCfg *eth.SystemConfig, ev *types.Log, rollupCfg *rollup.Config, l1Time uint64) error {
	if len(ev.Topics) != 3 {
		return fmt.Errorf("%w: expected 3 event topics (event identity, indexed version, indexed updateType), got %d", errSystemConfigLog, len(ev.Topics))
	}
	if ev.Topics[0] != ConfigUpdateEventABIHash {
		return fmt.Errorf("%w: invalid SystemConfig update event: %s, expected %s", errSystemConfigLog, ev.Topics[0], ConfigUpdateEventABIHash)
	}

	// indexed 0
	version := ev.Topics[1]
	if version != ConfigUpdateEventVersion0 {
		return fmt.Errorf("%w: unrecognized SystemConfig update event version: %s", errSystemConfigLog, version)
	}
	// indexed 1
	updateType := ev.Topics[2]

	// Create a reader of the unindexed data
	reader := bytes.NewReader(ev.Data)

	// Attempt to read unindexed data
	switch updateType {
	case SystemConfigUpdateBatcher:
		if pointer, err := solabi.ReadUint64(reader); err != nil || pointer != 32 {
			return NewCriticalError(errors.New("invalid pointer field"))
		}
		if length, err := solabi.ReadUint64(reader); err != nil || length != 32 {
			return NewCriticalError(errors.New("invalid length field"))
		}
		address, err := solabi.ReadAddress(reader)
		if err != nil {
			return NewCriticalError(errors.New("could not read address"))
		}
		if !solabi.EmptyReader(reader) {
			return NewCriticalError(errors.New("too many bytes"))
		}
		destSysCfg.BatcherAddr = address
		return nil
	case SystemConfigUpdateGasConfig:
		if pointer, err := solabi.ReadUint64(reader); err != nil || pointer != 32 {
			return NewCriticalError(errors.New("invalid pointer field"))
		}
		if length, err := solabi.ReadUint64(reader); err != nil || length != 64 {
			return NewCriticalError(errors.New("invalid length field"))
		}
		overhead, err := solabi.ReadEthBytes32(reader)
		if err != nil {
			return NewCriticalError(errors.New("could not read overhead"))
		}
		scalar, err := solabi.ReadEthBytes32(reader)
		if err != nil {
			return NewCriticalError(errors.New("could not read scalar"))
		}
		if !solabi.EmptyReader(reader) {
			return NewCriticalError(errors.New("too many bytes"))
		}
		if rollupCfg.IsEcotone(l1Time) {
			if err := eth.CheckEcotoneL1SystemConfigScalar(scalar); err != nil {
				return nil // ignore invalid scalars, retain the old system-config scalar
			}
			// retain the scalar data in encoded form
			destSysCfg.Scalar = scalar
			// zero out the overhead, it will not affect the state-transition after Ecotone
			destSysCfg.Overhead = eth.Bytes32{}
		} else {
			destSysCfg.Overhead = overhead
			destSysCfg.Scalar = scalar
		}
		return nil
	case SystemConfigUpdateGasLimit:
		if pointer, err := solabi.ReadUint64(reader); err != nil || pointer != 32 {
			return NewCriticalError(errors.New("invalid pointer field"))
		}
		if length, err := solabi.ReadUint64(reader); err != nil || length != 32 {
			return NewCriticalError(errors.New("invalid length field"))
		}
		gasLimit, err := solabi.ReadUint64(reader)
		if err != nil {
			return NewCriticalError(errors.New("could not read gas limit"))
		}
		if !solabi.EmptyReader(reader) {
			return NewCriticalError(errors.New("too many bytes"))
		}
		destSysCfg.GasLimit = gasLimit
		return nil
	case SystemConfigUpdateUnsafeBlockSigner:
		// Ignored in derivation. This configurable applies to runtime configuration outside of the derivation.
		return nil
	default:
		return fmt.Errorf("%w: unrecognized L1 sysCfg update type: %s", errSystemConfigLog, updateType)
	}
}

// L1InfoToSystemConfig recovers the L1 parts of the system config from the L1 info deposit of an L2 block.
func L1InfoToSystemConfig(info *L1BlockInfo, isEcotone bool) eth.SystemConfig {
	cfg := eth.SystemConfig{
		BatcherAddr: info.BatcherAddr,
		Overhead:    info.L1FeeOverhead,
		Scalar:      info.L1FeeScalar,
	}
	if isEcotone {
		cfg.Overhead = eth.Bytes32{}
		cfg.Scalar = eth.EncodeScalar(eth.EcotoneScalars{
			BlobBaseFeeScalar: info.BlobBaseFeeScalar,
			BaseFeeScalar:     info.BaseFeeScalar,
		})
	}
	return cfg
}

// marshalConfigUpdate encodes a ConfigUpdate log the way the system config contract emits it.
func marshalConfigUpdate(systemConfigAddr common.Address, updateType common.Hash, words ...[32]byte) *types.Log {
	data := make([]byte, 0, 64+32*len(words))
	data = append(data, make([]byte, 24)...)
	data = binary.BigEndian.AppendUint64(data, 32)
	data = append(data, make([]byte, 24)...)
	data = binary.BigEndian.AppendUint64(data, uint64(32*len(words)))
	for _, w := range words {
		data = append(data, w[:]...)
	}
	return &types.Log{
		Address: systemConfigAddr,
		Topics:  []common.Hash{ConfigUpdateEventABIHash, ConfigUpdateEventVersion0, updateType},
		Data:    data,
	}
}

// BatcherUpdateLog builds the ConfigUpdate log that rotates the batcher address.
func BatcherUpdateLog(systemConfigAddr common.Address, batcher common.Address) *types.Log {
	return marshalConfigUpdate(systemConfigAddr, SystemConfigUpdateBatcher, eth.AddressAsLeftPaddedHash(batcher))
}

// GasLimitUpdateLog builds the ConfigUpdate log that changes the L2 gas limit.
func GasLimitUpdateLog(systemConfigAddr common.Address, gasLimit uint64) *types.Log {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], gasLimit)
	return marshalConfigUpdate(systemConfigAddr, SystemConfigUpdateGasLimit, w)
}

// GasConfigUpdateLog builds the ConfigUpdate log that changes the fee overhead and scalar.
func GasConfigUpdateLog(systemConfigAddr common.Address, overhead, scalar eth.Bytes32) *types.Log {
	return marshalConfigUpdate(systemConfigAddr, SystemConfigUpdateGasConfig, overhead, scalar)
}
