package predeploys

import "github.com/ethereum/go-ethereum/common"

const (
	L1Block                    = "0x4200000000000000000000000000000000000015"
	L2ToL1MessagePasser        = "0x4200000000000000000000000000000000000016"
	SequencerFeeVault          = "0x4200000000000000000000000000000000000011"
	CrossL2Inbox               = "0x4200000000000000000000000000000000000022"
	L2toL2CrossDomainMessenger = "0x4200000000000000000000000000000000000023"
)

var (
	L1BlockAddr                    = common.HexToAddress(L1Block)
	L2ToL1MessagePasserAddr        = common.HexToAddress(L2ToL1MessagePasser)
	SequencerFeeVaultAddr          = common.HexToAddress(SequencerFeeVault)
	CrossL2InboxAddr               = common.HexToAddress(CrossL2Inbox)
	L2toL2CrossDomainMessengerAddr = common.HexToAddress(L2toL2CrossDomainMessenger)

	// L1InfoDepositerAddress is the system account that sends the L1 attributes deposit of every block.
	L1InfoDepositerAddress = common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")
)
