package derive

import "github.com/mantlenetworkio/mantle-faultproof/op-service/eth"

// Metrics is the part of the program metrics the derivation pipeline reports to.
type Metrics interface {
	RecordL1Ref(name string, ref eth.L1BlockRef)
	RecordFrameDropped(reason string)
	RecordChannelInputBytes(num int)
	RecordChannelTimedOut()
	RecordChannelEvicted()
	RecordChannelInvalid()
	RecordBatchDropped()
	RecordDerivedBatches(batchType string)
	RecordAttributesDerived()
	RecordPipelineReset()
	RecordL1Reorg()
	RecordCriticalError()
}
