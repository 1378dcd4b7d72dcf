package types

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	"github.com/mantlenetworkio/mantle-faultproof/op-service/predeploys"
)

var errLogIndexTooLarge = errors.New("log index too large")

var ExecutingMessageEventTopic = crypto.Keccak256Hash([]byte("ExecutingMessage(bytes32,(address,uint256,uint256,uint256,uint256))"))

// ExecutingMessage is the compact form of an executing message: where the initiating
// message lives, and the checksum it must match.
type ExecutingMessage struct {
	ChainID   eth.ChainID
	BlockNum  uint64
	LogIdx    uint32
	Timestamp uint64
	Checksum  MessageChecksum
}

func (s *ExecutingMessage) String() string {
	return fmt.Sprintf("ExecMsg(chain: %s, block: %d, log: %d, time: %d, checksum: %s)",
		&s.ChainID, s.BlockNum, s.LogIdx, s.Timestamp, s.Checksum)
}

type Message struct {
	Identifier  Identifier  `json:"identifier"`
	PayloadHash common.Hash `json:"payloadHash"`
}

func (m *Message) ToCheckSumArgs() ChecksumArgs {
	return m.Identifier.ChecksumArgs(m.PayloadHash)
}

func (m *Message) Checksum() MessageChecksum {
	return m.ToCheckSumArgs().Checksum()
}

func (m *Message) Executing() *ExecutingMessage {
	return &ExecutingMessage{
		ChainID:   m.Identifier.ChainID,
		BlockNum:  m.Identifier.BlockNumber,
		LogIdx:    m.Identifier.LogIndex,
		Timestamp: m.Identifier.Timestamp,
		Checksum:  m.Checksum(),
	}
}

// DecodeEvent reads the message from the topics and data of an ExecutingMessage event.
func (m *Message) DecodeEvent(topics []common.Hash, data []byte) error {
	if len(topics) != 2 { // event hash, indexed payloadHash
		return fmt.Errorf("unexpected number of event topics: %d", len(topics))
	}
	if topics[0] != ExecutingMessageEventTopic {
		return fmt.Errorf("unexpected event topic %q", topics[0])
	}
	if len(data) != 32*5 {
		return fmt.Errorf("unexpected identifier data length: %d", len(data))
	}
	take := func(length uint) []byte {
		taken := data[:length]
		data = data[length:]
		return taken
	}
	takeZeroes := func(length uint) error {
		for _, v := range take(length) {
			if v != 0 {
				return errors.New("expected zero")
			}
		}
		return nil
	}
	if err := takeZeroes(12); err != nil {
		return fmt.Errorf("invalid address padding: %w", err)
	}
	m.Identifier.Origin = common.Address(take(20))
	if err := takeZeroes(32 - 8); err != nil {
		return fmt.Errorf("invalid block number padding: %w", err)
	}
	m.Identifier.BlockNumber = binary.BigEndian.Uint64(take(8))
	if err := takeZeroes(32 - 4); err != nil {
		return fmt.Errorf("invalid log index padding: %w", err)
	}
	m.Identifier.LogIndex = binary.BigEndian.Uint32(take(4))
	if err := takeZeroes(32 - 8); err != nil {
		return fmt.Errorf("invalid timestamp padding: %w", err)
	}
	m.Identifier.Timestamp = binary.BigEndian.Uint64(take(8))
	m.Identifier.ChainID = eth.ChainIDFromBytes32([32]byte(take(32)))
	m.PayloadHash = topics[1]
	return nil
}

// EncodeEvent is the inverse of DecodeEvent.
func (m *Message) EncodeEvent() (topics []common.Hash, data []byte) {
	data = make([]byte, 0, 32*5)
	data = append(data, make([]byte, 12)...)
	data = append(data, m.Identifier.Origin[:]...)
	data = append(data, make([]byte, 32-8)...)
	data = binary.BigEndian.AppendUint64(data, m.Identifier.BlockNumber)
	data = append(data, make([]byte, 32-4)...)
	data = binary.BigEndian.AppendUint32(data, m.Identifier.LogIndex)
	data = append(data, make([]byte, 32-8)...)
	data = binary.BigEndian.AppendUint64(data, m.Identifier.Timestamp)
	chainID := m.Identifier.ChainID.Bytes32()
	data = append(data, chainID[:]...)
	return []common.Hash{ExecutingMessageEventTopic, m.PayloadHash}, data
}

// MessageFromLog returns the executing message declared by the log, or nil if the log
// is not an ExecutingMessage event of the CrossL2Inbox.
func MessageFromLog(l *ethTypes.Log) (*Message, error) {
	if l.Address != predeploys.CrossL2InboxAddr {
		return nil, nil
	}
	if len(l.Topics) != 2 { // topics: event-id and payload-hash
		return nil, nil
	}
	if l.Topics[0] != ExecutingMessageEventTopic {
		return nil, nil
	}
	var msg Message
	if err := msg.DecodeEvent(l.Topics, l.Data); err != nil {
		return nil, fmt.Errorf("invalid executing message: %w", err)
	}
	return &msg, nil
}

type ChecksumArgs struct {
	BlockNumber uint64
	LogIndex    uint32
	Timestamp   uint64
	ChainID     eth.ChainID
	LogHash     common.Hash
}

func (args ChecksumArgs) Checksum() MessageChecksum {
	idPacked := make([]byte, 12, 32) // 12 zero bytes, as padding to 32 bytes
	idPacked = binary.BigEndian.AppendUint64(idPacked, args.BlockNumber)
	idPacked = binary.BigEndian.AppendUint64(idPacked, args.Timestamp)
	idPacked = binary.BigEndian.AppendUint32(idPacked, args.LogIndex)
	idLogHash := crypto.Keccak256Hash(args.LogHash[:], idPacked)
	chainID := args.ChainID.Bytes32()
	out := crypto.Keccak256Hash(idLogHash[:], chainID[:])
	out[0] = 0x03 // type/version byte
	return MessageChecksum(out)
}

type Identifier struct {
	Origin      common.Address
	BlockNumber uint64
	LogIndex    uint32
	Timestamp   uint64
	ChainID     eth.ChainID // flat, not a pointer, to make Identifier safe as map key
}

type identifierMarshaling struct {
	Origin      common.Address `json:"origin"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	LogIndex    hexutil.Uint64 `json:"logIndex"`
	Timestamp   hexutil.Uint64 `json:"timestamp"`
	ChainID     hexutil.U256   `json:"chainID"`
}

func (id Identifier) MarshalJSON() ([]byte, error) {
	var enc identifierMarshaling
	enc.Origin = id.Origin
	enc.BlockNumber = hexutil.Uint64(id.BlockNumber)
	enc.LogIndex = hexutil.Uint64(id.LogIndex)
	enc.Timestamp = hexutil.Uint64(id.Timestamp)
	enc.ChainID = (hexutil.U256)(id.ChainID)
	return json.Marshal(&enc)
}

func (id *Identifier) UnmarshalJSON(input []byte) error {
	var dec identifierMarshaling
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	id.Origin = dec.Origin
	id.BlockNumber = uint64(dec.BlockNumber)
	if dec.LogIndex > math.MaxUint32 {
		return fmt.Errorf("%w: %d", errLogIndexTooLarge, dec.LogIndex)
	}
	id.LogIndex = uint32(dec.LogIndex)
	id.Timestamp = uint64(dec.Timestamp)
	id.ChainID = (eth.ChainID)(dec.ChainID)
	return nil
}

func (id Identifier) ChecksumArgs(msgHash common.Hash) ChecksumArgs {
	return ChecksumArgs{
		BlockNumber: id.BlockNumber,
		Timestamp:   id.Timestamp,
		LogIndex:    id.LogIndex,
		ChainID:     id.ChainID,
		LogHash:     PayloadHashToLogHash(msgHash, id.Origin),
	}
}

// PayloadHashToLogHash converts the payload hash to the log hash
// it is the concatenation of the log's address and the hash of the log's payload,
// which is then hashed again. This is the hash that is stored in the log storage.
// The logHash can then be used to traverse from the executing message
// to the log the referenced initiating message.
func PayloadHashToLogHash(payloadHash common.Hash, addr common.Address) common.Hash {
	msg := make([]byte, 0, 2*common.HashLength)
	msg = append(msg, addr.Bytes()...)
	msg = append(msg, payloadHash.Bytes()...)
	return crypto.Keccak256Hash(msg)
}

// LogToMessagePayload is the data that is hashed to get the payloadHash
// it is the concatenation of the log's topics and data
func LogToMessagePayload(l *ethTypes.Log) []byte {
	msg := make([]byte, 0)
	for _, topic := range l.Topics {
		msg = append(msg, topic.Bytes()...)
	}
	msg = append(msg, l.Data...)
	return msg
}

// MessageChecksum represents a message checksum, as used for access-list checks.
type MessageChecksum common.Hash

func (mc MessageChecksum) MarshalText() ([]byte, error) {
	return common.Hash(mc).MarshalText()
}

func (mc *MessageChecksum) UnmarshalText(data []byte) error {
	return (*common.Hash)(mc).UnmarshalText(data)
}

func (mc MessageChecksum) String() string {
	return common.Hash(mc).String()
}
