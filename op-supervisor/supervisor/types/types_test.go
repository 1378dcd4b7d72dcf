package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
)

var (
	testOrigin      = common.HexToAddress("0xe0e1e2e3e4e5e6e7e8e9f0f1f2f3f4f5f6f7f8f9")
	testBlockNumber = uint64(0xa1a2_a3a4_a5a6_a7a8)
	testLogIndex    = uint32(0xb1b2_b3b4)
	testTimestamp   = uint64(0xc1c2_c3c4_c5c6_c7c8)
	testChainID     = eth.ChainIDFromUInt64(0xd1d2_d3d4_d5d6_d7d8)
	testPayload     = []byte("example payload")
	testMsgHash     = common.HexToHash("0x8017559a85b12c04b14a1a425d53486d1015f833714a09bd62f04152a7e2ae9b")
	testLogHash     = common.HexToHash("0xf9ed05990c887d3f86718aabd7e940faaa75d6a5cd44602e89642586ce85f2aa")
	testChecksum    = MessageChecksum(common.HexToHash("0x03749e87fd7789575de9906569deb05aaf220dc4cfab3d8abbfd34a2e1d7d357"))
)

func testMessage() Message {
	return Message{
		Identifier: Identifier{
			Origin:      testOrigin,
			BlockNumber: testBlockNumber,
			LogIndex:    testLogIndex,
			Timestamp:   testTimestamp,
			ChainID:     testChainID,
		},
		PayloadHash: testMsgHash,
	}
}

func TestMessage(t *testing.T) {
	msg := testMessage()
	t.Run("checksum", func(t *testing.T) {
		require.Equal(t, testChecksum, msg.Checksum())
	})
	t.Run("executing", func(t *testing.T) {
		exec := msg.Executing()
		require.Equal(t, testChainID, exec.ChainID)
		require.Equal(t, testBlockNumber, exec.BlockNum)
		require.Equal(t, testLogIndex, exec.LogIdx)
		require.Equal(t, testTimestamp, exec.Timestamp)
		require.Equal(t, testChecksum, exec.Checksum)
	})
	t.Run("json roundtrip", func(t *testing.T) {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		var out Message
		require.NoError(t, json.Unmarshal(data, &out))
		require.Equal(t, msg, out)
	})
}

func TestChecksumArgs(t *testing.T) {
	args := ChecksumArgs{
		BlockNumber: testBlockNumber,
		LogIndex:    testLogIndex,
		Timestamp:   testTimestamp,
		ChainID:     testChainID,
		LogHash:     testLogHash,
	}
	require.Equal(t, testChecksum, args.Checksum())
}

func TestIdentifierJSON(t *testing.T) {
	id := testMessage().Identifier
	data, err := json.Marshal(id)
	require.NoError(t, err)
	var out Identifier
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, id, out)

	t.Run("log index too large", func(t *testing.T) {
		err := json.Unmarshal([]byte(`{"origin":"0x0000000000000000000000000000000000000000","blockNumber":"0x1","logIndex":"0x100000000","timestamp":"0x1","chainID":"0x1"}`), &out)
		require.ErrorIs(t, err, errLogIndexTooLarge)
	})
}

func TestDecodeEvent(t *testing.T) {
	msg := testMessage()
	topics, data := msg.EncodeEvent()
	require.Len(t, data, 32*5)

	var out Message
	require.NoError(t, out.DecodeEvent(topics, data))
	require.Equal(t, msg, out)

	t.Run("wrong topic count", func(t *testing.T) {
		require.ErrorContains(t, out.DecodeEvent(topics[:1], data), "number of event topics")
	})
	t.Run("wrong topic", func(t *testing.T) {
		require.ErrorContains(t, out.DecodeEvent([]common.Hash{{0x01}, testMsgHash}, data), "unexpected event topic")
	})
	t.Run("wrong length", func(t *testing.T) {
		require.ErrorContains(t, out.DecodeEvent(topics, data[:100]), "data length")
	})
	t.Run("bad padding", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 1
		require.ErrorContains(t, out.DecodeEvent(topics, bad), "address padding")
		bad = append([]byte(nil), data...)
		bad[32+3] = 1
		require.ErrorContains(t, out.DecodeEvent(topics, bad), "block number padding")
	})
}

func TestMessageFromLog(t *testing.T) {
	msg := testMessage()
	topics, data := msg.EncodeEvent()

	t.Run("executing message", func(t *testing.T) {
		out, err := MessageFromLog(&ethTypes.Log{Address: predeploys.CrossL2InboxAddr, Topics: topics, Data: data})
		require.NoError(t, err)
		require.Equal(t, &msg, out)
	})
	t.Run("other emitter", func(t *testing.T) {
		out, err := MessageFromLog(&ethTypes.Log{Address: common.Address{0x42}, Topics: topics, Data: data})
		require.NoError(t, err)
		require.Nil(t, out)
	})
	t.Run("other event", func(t *testing.T) {
		out, err := MessageFromLog(&ethTypes.Log{Address: predeploys.CrossL2InboxAddr, Topics: []common.Hash{{0x01}, {0x02}}, Data: data})
		require.NoError(t, err)
		require.Nil(t, out)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := MessageFromLog(&ethTypes.Log{Address: predeploys.CrossL2InboxAddr, Topics: topics, Data: data[:64]})
		require.ErrorContains(t, err, "invalid executing message")
	})
}

func TestPayloadHashToLogHash(t *testing.T) {
	logHash := PayloadHashToLogHash(testMsgHash, testOrigin)
	require.Equal(t, testLogHash, logHash)
}

func TestLogToMessagePayload(t *testing.T) {
	payload := LogToMessagePayload(&ethTypes.Log{
		Data: testPayload,
	})
	require.Equal(t, hexutil.Encode(testPayload), hexutil.Encode(payload))

	v := LogToMessagePayload(&ethTypes.Log{
		Data: []byte(`foobar`),
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte(`topic0`)),
			crypto.Keccak256Hash([]byte(`topic1`)),
		},
	})
	expected := make([]byte, 0)
	expected = append(expected, crypto.Keccak256([]byte(`topic0`))...)
	expected = append(expected, crypto.Keccak256([]byte(`topic1`))...)
	expected = append(expected, []byte(`foobar`)...)
	require.Equal(t, expected, v)
}
