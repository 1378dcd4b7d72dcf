// Package metrics provides the metrics of the fault proof program.
// The program runs without network access, so metrics are collected on a
// private registry and only inspected by the embedding process or by tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mantlenetworkio/mantle-faultproof/op-service/eth"
	opmetrics "github.com/mantlenetworkio/mantle-faultproof/op-service/metrics"
)

const Namespace = "fp_program"

type Metricer interface {
	RecordL1Ref(name string, ref eth.L1BlockRef)
	RecordL2Ref(name string, ref eth.L2BlockRef)

	// derivation
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

	// data providers
	RecordL1Request(method string)
	RecordPreimageGet(keyType string)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)

	// driver
	RecordBlockExecuted()
	RecordInteropHold()
	RecordInteropReplacement()
}

type Metrics struct {
	opmetrics.RefMetrics

	FramesDropped      *prometheus.CounterVec
	ChannelInputBytes  prometheus.Counter
	ChannelsTimedOut   prometheus.Counter
	ChannelsEvicted    prometheus.Counter
	ChannelsInvalid    prometheus.Counter
	BatchesDropped     prometheus.Counter
	DerivedBatches     *prometheus.CounterVec
	AttributesDerived  prometheus.Counter
	PipelineResets     prometheus.Counter
	L1Reorgs           prometheus.Counter
	CriticalErrors     prometheus.Counter
	L1Requests         *prometheus.CounterVec
	PreimageGets       *prometheus.CounterVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	BlocksExecuted     prometheus.Counter
	InteropHolds       prometheus.Counter
	InteropReplacement prometheus.Counter

	registry *prometheus.Registry
}

var _ Metricer = (*Metrics)(nil)

// NewMetrics creates metrics on a private registry.
func NewMetrics() *Metrics {
	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help}, labels)
	}
	return &Metrics{
		RefMetrics: opmetrics.MakeRefMetrics(Namespace, factory),

		FramesDropped:      counterVec("frames_dropped", "Frames dropped by the channel bank or frame parser", "reason"),
		ChannelInputBytes:  counter("channel_input_bytes", "Bytes of frame data added to channels"),
		ChannelsTimedOut:   counter("channels_timed_out", "Channels dropped because they timed out"),
		ChannelsEvicted:    counter("channels_evicted", "Channels evicted to stay within the channel bank limits"),
		ChannelsInvalid:    counter("channels_invalid", "Channels that failed to decompress or decode"),
		BatchesDropped:     counter("batches_dropped", "Batches dropped by the batch queue"),
		DerivedBatches:     counterVec("derived_batches", "Batches read from channels, by type", "type"),
		AttributesDerived:  counter("attributes_derived", "Payload attributes produced by the pipeline"),
		PipelineResets:     counter("pipeline_resets", "Derivation pipeline resets"),
		L1Reorgs:           counter("l1_reorgs", "L1 reorgs detected by the L1 traversal"),
		CriticalErrors:     counter("critical_errors", "Critical derivation errors"),
		L1Requests:         counterVec("l1_requests", "L1 data requests made by the pipeline", "method"),
		PreimageGets:       counterVec("preimage_gets", "Preimage requests sent to the host", "type"),
		CacheHits:          counterVec("cache_hits", "Data provider cache hits", "cache"),
		CacheMisses:        counterVec("cache_misses", "Data provider cache misses", "cache"),
		BlocksExecuted:     counter("blocks_executed", "L2 blocks applied by the execution adapter"),
		InteropHolds:       counter("interop_holds", "Candidate blocks held back as indeterminate"),
		InteropReplacement: counter("interop_replacements", "Invalid candidate blocks replaced by deposits-only blocks"),

		registry: registry,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordChannelInputBytes(num int) {
	m.ChannelInputBytes.Add(float64(num))
}

func (m *Metrics) RecordChannelTimedOut() {
	m.ChannelsTimedOut.Inc()
}

func (m *Metrics) RecordChannelEvicted() {
	m.ChannelsEvicted.Inc()
}

func (m *Metrics) RecordChannelInvalid() {
	m.ChannelsInvalid.Inc()
}

func (m *Metrics) RecordBatchDropped() {
	m.BatchesDropped.Inc()
}

func (m *Metrics) RecordDerivedBatches(batchType string) {
	m.DerivedBatches.WithLabelValues(batchType).Inc()
}

func (m *Metrics) RecordAttributesDerived() {
	m.AttributesDerived.Inc()
}

func (m *Metrics) RecordPipelineReset() {
	m.PipelineResets.Inc()
}

func (m *Metrics) RecordL1Reorg() {
	m.L1Reorgs.Inc()
}

func (m *Metrics) RecordCriticalError() {
	m.CriticalErrors.Inc()
}

func (m *Metrics) RecordL1Request(method string) {
	m.L1Requests.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordPreimageGet(keyType string) {
	m.PreimageGets.WithLabelValues(keyType).Inc()
}

func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordBlockExecuted() {
	m.BlocksExecuted.Inc()
}

func (m *Metrics) RecordInteropHold() {
	m.InteropHolds.Inc()
}

func (m *Metrics) RecordInteropReplacement() {
	m.InteropReplacement.Inc()
}

type noopMetrics struct {
	opmetrics.NoopRefMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordFrameDropped(string)      {}
func (*noopMetrics) RecordChannelInputBytes(int)    {}
func (*noopMetrics) RecordChannelTimedOut()         {}
func (*noopMetrics) RecordChannelEvicted()          {}
func (*noopMetrics) RecordChannelInvalid()          {}
func (*noopMetrics) RecordBatchDropped()            {}
func (*noopMetrics) RecordDerivedBatches(string)    {}
func (*noopMetrics) RecordAttributesDerived()       {}
func (*noopMetrics) RecordPipelineReset()           {}
func (*noopMetrics) RecordL1Reorg()                 {}
func (*noopMetrics) RecordCriticalError()           {}
func (*noopMetrics) RecordL1Request(string)         {}
func (*noopMetrics) RecordPreimageGet(string)       {}
func (*noopMetrics) RecordCacheHit(string)          {}
func (*noopMetrics) RecordCacheMiss(string)         {}
func (*noopMetrics) RecordBlockExecuted()           {}
func (*noopMetrics) RecordInteropHold()             {}
func (*noopMetrics) RecordInteropReplacement()      {}
