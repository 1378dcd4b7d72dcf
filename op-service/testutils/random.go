package testutils

import (
	"crypto/ecdsa"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
)

func RandomBool(rng *rand.Rand) bool {
	return rng.Intn(2) == 1
}

func RandomHash(rng *rand.Rand) (out common.Hash) {
	rng.Read(out[:])
	return out
}

func RandomAddress(rng *rand.Rand) (out common.Address) {
	rng.Read(out[:])
	return out
}

func RandomETH(rng *rand.Rand, max int64) *big.Int {
	x := big.NewInt(rng.Int63n(max))
	x = new(big.Int).Mul(x, big.NewInt(1e18))
	return x
}

func RandomKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic("couldn't generate key: " + err.Error())
	}
	return key
}

func RandomData(rng *rand.Rand, size int) []byte {
	out := make([]byte, size)
	rng.Read(out)
	return out
}

func RandomBlockID(rng *rand.Rand) eth.BlockID {
	return eth.BlockID{
		Hash:   RandomHash(rng),
		Number: rng.Uint64() & ((1 << 50) - 1), // be json friendly
	}
}

func RandomBlockRef(rng *rand.Rand) eth.L1BlockRef {
	return eth.L1BlockRef{
		Hash:       RandomHash(rng),
		Number:     rng.Uint64(),
		ParentHash: RandomHash(rng),
		Time:       rng.Uint64(),
	}
}

func NextRandomRef(rng *rand.Rand, parent eth.L1BlockRef) eth.L1BlockRef {
	return eth.L1BlockRef{
		Hash:       RandomHash(rng),
		Number:     parent.Number + 1,
		ParentHash: parent.Hash,
		Time:       parent.Time + uint64(rng.Intn(100)),
	}
}

func RandomL2BlockRef(rng *rand.Rand) eth.L2BlockRef {
	return eth.L2BlockRef{
		Hash:           RandomHash(rng),
		Number:         rng.Uint64(),
		ParentHash:     RandomHash(rng),
		Time:           rng.Uint64(),
		L1Origin:       RandomBlockID(rng),
		SequenceNumber: rng.Uint64(),
	}
}

func NextRandomL2Ref(rng *rand.Rand, l2BlockTime uint64, parent eth.L2BlockRef, origin eth.BlockID) eth.L2BlockRef {
	seq := parent.SequenceNumber + 1
	if parent.L1Origin != origin {
		seq = 0
	}
	return eth.L2BlockRef{
		Hash:           RandomHash(rng),
		Number:         parent.Number + 1,
		ParentHash:     parent.Hash,
		Time:           parent.Time + l2BlockTime,
		L1Origin:       origin,
		SequenceNumber: seq,
	}
}

// RandomHeader returns a header with random content, usable as an L1 block header.
func RandomHeader(rng *rand.Rand) *types.Header {
	excess := rng.Uint64() % (1 << 20)
	return &types.Header{
		ParentHash:    RandomHash(rng),
		UncleHash:     types.EmptyUncleHash,
		Coinbase:      RandomAddress(rng),
		Root:          RandomHash(rng),
		TxHash:        types.EmptyTxsHash,
		ReceiptHash:   types.EmptyReceiptsHash,
		Difficulty:    common.Big0,
		Number:        big.NewInt(1 + rng.Int63n(100_000_000)),
		GasLimit:      30_000_000,
		GasUsed:       0,
		Time:          uint64(rng.Int63n(2_000_000_000)),
		MixDigest:     RandomHash(rng),
		BaseFee:       big.NewInt(rng.Int63n(300_000_000_000)),
		ExcessBlobGas: &excess,
	}
}

func RandomTo(rng *rand.Rand) *common.Address {
	if rng.Intn(2) == 0 {
		return nil
	}
	to := RandomAddress(rng)
	return &to
}

func RandomTx(rng *rand.Rand, baseFee *big.Int, signer types.Signer) *types.Transaction {
	txTypeList := []int{types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType}
	txType := txTypeList[rng.Intn(len(txTypeList))]
	var tx *types.Transaction
	switch txType {
	case types.LegacyTxType:
		tx = RandomLegacyTx(rng, signer)
	case types.AccessListTxType:
		tx = RandomAccessListTx(rng, signer)
	case types.DynamicFeeTxType:
		tx = RandomDynamicFeeTxWithBaseFee(rng, baseFee, signer)
	}
	return tx
}

func RandomLegacyTxNotProtected(rng *rand.Rand) *types.Transaction {
	return RandomLegacyTx(rng, types.HomesteadSigner{})
}

func RandomLegacyTx(rng *rand.Rand, signer types.Signer) *types.Transaction {
	key := InsecureRandomKey(rng)
	txData := &types.LegacyTx{
		Nonce:    rng.Uint64(),
		GasPrice: new(big.Int).SetUint64(rng.Uint64()),
		Gas:      params21000(rng),
		To:       RandomTo(rng),
		Value:    RandomETH(rng, 10),
		Data:     RandomData(rng, rng.Intn(1000)),
	}
	tx, err := types.SignNewTx(key, signer, txData)
	if err != nil {
		panic(err)
	}
	return tx
}

func RandomAccessListTx(rng *rand.Rand, signer types.Signer) *types.Transaction {
	key := InsecureRandomKey(rng)
	txData := &types.AccessListTx{
		ChainID:    signer.ChainID(),
		Nonce:      rng.Uint64(),
		GasPrice:   new(big.Int).SetUint64(rng.Uint64()),
		Gas:        params21000(rng),
		To:         RandomTo(rng),
		Value:      RandomETH(rng, 10),
		Data:       RandomData(rng, rng.Intn(1000)),
		AccessList: randomAccessList(rng),
	}
	tx, err := types.SignNewTx(key, signer, txData)
	if err != nil {
		panic(err)
	}
	return tx
}

func RandomDynamicFeeTxWithBaseFee(rng *rand.Rand, baseFee *big.Int, signer types.Signer) *types.Transaction {
	key := InsecureRandomKey(rng)
	tip := big.NewInt(rng.Int63n(10 * 1e9))
	txData := &types.DynamicFeeTx{
		ChainID:    signer.ChainID(),
		Nonce:      rng.Uint64(),
		GasTipCap:  tip,
		GasFeeCap:  new(big.Int).Add(baseFee, tip),
		Gas:        params21000(rng),
		To:         RandomTo(rng),
		Value:      RandomETH(rng, 10),
		Data:       RandomData(rng, rng.Intn(1000)),
		AccessList: randomAccessList(rng),
	}
	tx, err := types.SignNewTx(key, signer, txData)
	if err != nil {
		panic(err)
	}
	return tx
}

func RandomDynamicFeeTx(rng *rand.Rand, signer types.Signer) *types.Transaction {
	return RandomDynamicFeeTxWithBaseFee(rng, big.NewInt(rng.Int63n(300_000_000_000)), signer)
}

func params21000(rng *rand.Rand) uint64 {
	return 21_000 + uint64(rng.Int63n(10_000_000))
}

func randomAccessList(rng *rand.Rand) types.AccessList {
	list := make(types.AccessList, rng.Intn(4))
	for i := range list {
		list[i].Address = RandomAddress(rng)
		list[i].StorageKeys = make([]common.Hash, rng.Intn(3))
		for j := range list[i].StorageKeys {
			list[i].StorageKeys[j] = RandomHash(rng)
		}
	}
	return list
}

// InsecureRandomKey returns a random private key from a limited set of keys.
// Output is deterministic when the supplied rng generates the same random sequence.
func InsecureRandomKey(rng *rand.Rand) *ecdsa.PrivateKey {
	idx := rng.Intn(len(randomEcdsaKeys))
	key, err := crypto.ToECDSA(common.Hex2Bytes(randomEcdsaKeys[idx]))
	if err != nil {
		panic(err)
	}
	return key
}

// RandomReceipt returns a successful receipt with a random set of logs.
func RandomReceipt(rng *rand.Rand, signer types.Signer, tx *types.Transaction, txIndex uint64, cumulativeGasUsed uint64) *types.Receipt {
	gasUsed := params21000(rng)
	logs := make([]*types.Log, rng.Intn(10))
	for i := range logs {
		topics := make([]common.Hash, rng.Intn(4))
		for j := range topics {
			topics[j] = RandomHash(rng)
		}
		logs[i] = &types.Log{
			Address: RandomAddress(rng),
			Topics:  topics,
			Data:    RandomData(rng, rng.Intn(1000)),
			TxIndex: uint(txIndex),
			Index:   uint(i),
		}
	}
	return &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: cumulativeGasUsed + gasUsed,
		Bloom:             types.CreateBloom(&types.Receipt{Logs: logs}),
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		TransactionIndex:  uint(txIndex),
	}
}

// RandomBlock returns a block with txCount random transactions, along with their receipts.
func RandomBlock(rng *rand.Rand, txCount uint64) (*types.Block, []*types.Receipt) {
	return RandomBlockPrependTxsWithTime(rng, int(txCount), 0)
}

// RandomBlockPrependTxsWithTime creates a block with random transactions after the given ones,
// with consistent transaction and receipt roots.
func RandomBlockPrependTxsWithTime(rng *rand.Rand, txCount int, t uint64, ptxs ...*types.Transaction) (*types.Block, []*types.Receipt) {
	header := RandomHeader(rng)
	if t != 0 {
		header.Time = t
	}
	signer := types.NewLondonSigner(big.NewInt(rng.Int63n(1000)))
	txs := make([]*types.Transaction, 0, txCount+len(ptxs))
	txs = append(txs, ptxs...)
	for i := 0; i < txCount; i++ {
		txs = append(txs, RandomTx(rng, header.BaseFee, signer))
	}
	receipts := make([]*types.Receipt, 0, len(txs))
	cumulativeGasUsed := uint64(0)
	for i, tx := range txs {
		r := RandomReceipt(rng, signer, tx, uint64(i), cumulativeGasUsed)
		cumulativeGasUsed += r.GasUsed
		receipts = append(receipts, r)
	}
	header.GasUsed = cumulativeGasUsed
	header.GasLimit = cumulativeGasUsed + uint64(rng.Int63n(int64(cumulativeGasUsed+1)))
	header.TxHash = types.DeriveSha(types.Transactions(txs), trie.NewStackTrie(nil))
	header.ReceiptHash = types.DeriveSha(types.Receipts(receipts), trie.NewStackTrie(nil))
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})
	for _, r := range receipts {
		r.BlockHash = block.Hash()
		r.BlockNumber = block.Number()
		for _, l := range r.Logs {
			l.BlockHash = block.Hash()
			l.BlockNumber = block.NumberU64()
			l.TxHash = r.TxHash
		}
	}
	return block, receipts
}

var randomEcdsaKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
}

// RandomBlob returns a blob holding random data, and its KZG commitment.
func RandomBlob(rng *rand.Rand) (*eth.Blob, kzg4844.Commitment, error) {
	var blob eth.Blob
	if err := blob.FromData(RandomData(rng, 1+rng.Intn(eth.MaxBlobDataSize-1))); err != nil {
		return nil, kzg4844.Commitment{}, err
	}
	commitment, err := kzg4844.BlobToCommitment(blob.KZGBlob())
	if err != nil {
		return nil, kzg4844.Commitment{}, err
	}
	return &blob, commitment, nil
}
