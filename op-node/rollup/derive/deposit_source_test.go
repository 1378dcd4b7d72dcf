package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

// TestL1InfoDepositSource
// cast keccak $(cast concat-hex 0x0000000000000000000000000000000000000000000000000000000000000001 $(cast keccak $(cast concat-hex 0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77 0x0000000000000000000000000000000000000000000000000000000000000004)))
// # 0x0586c503340591999b8b38bc9834bb16aec7d5bc00eb5587ab139c9ddab81977
func TestL1InfoDepositSource(t *testing.T) {
	source := L1InfoDepositSource{
		L1BlockHash: common.HexToHash("0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77"),
		SeqNumber:   4,
	}

	actual := source.SourceHash()
	expected := "0x0586c503340591999b8b38bc9834bb16aec7d5bc00eb5587ab139c9ddab81977"

	assert.Equal(t, expected, actual.Hex())
}

// TestInvalidatedBlockSource
// cast keccak $(cast concat-hex 0x0000000000000000000000000000000000000000000000000000000000000004 0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8)
// # 0x4a62bcfa03cf778234ae28fa39c9e0748f11099997b19fef9bb3fffc154fe456
func TestInvalidatedBlockSource(t *testing.T) {
	source := InvalidatedBlockSource{
		OutputRoot: common.HexToHash("0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"),
	}

	actual := source.SourceHash()
	expected := "0x4a62bcfa03cf778234ae28fa39c9e0748f11099997b19fef9bb3fffc154fe456"

	assert.Equal(t, expected, actual.Hex())
}

func TestUserDepositSourceDistinctPerLog(t *testing.T) {
	blockHash := common.HexToHash("0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77")
	a := UserDepositSource{L1BlockHash: blockHash, LogIndex: 0}
	b := UserDepositSource{L1BlockHash: blockHash, LogIndex: 1}
	info := L1InfoDepositSource{L1BlockHash: blockHash, SeqNumber: 0}

	assert.NotEqual(t, a.SourceHash(), b.SourceHash())
	// same preimage, different domain
	assert.NotEqual(t, a.SourceHash(), info.SourceHash())
}
