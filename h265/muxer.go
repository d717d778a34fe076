package h265

import (
	"errors"
	"fmt"

	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/Eyevinn/mp4ff/hevc"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// discardedTypes never reach a video tag.
var discardedTypes = []hevc.NaluType{hevc.NALU_AUD, hevc.NALU_SEI_PREFIX, hevc.NALU_SEI_SUFFIX}

type MuxerStats struct {
	Frames              int `json:"frames"`
	Discarded           int `json:"discarded,omitempty"`
	DroppedBeforeConfig int `json:"droppedBeforeConfig,omitempty"`
	ConfigPackets       int `json:"configPackets"`
	Packets             int `json:"packets"`
	ConfigFailures      int `json:"configFailures,omitempty"`
}

// Muxer aggregates Annex-B NAL units, given in decode order, into H.265
// video tags with one access unit per tag. A Muxer serves one stream and
// must not be used from several goroutines at once.
type Muxer struct {
	sink  PacketSink
	track Track
	codec RecordCodec
	log   *zap.Logger

	scratch       []byte
	ps            ParameterSets
	configEmitted bool
	// configErr is the failure of the last encode of the current parameter
	// sets. It is cleared when a parameter set changes.
	configErr  error
	warnedOnce bool

	pending *flv.Packet
	hasVCL  bool

	stats MuxerStats
}

type MuxerOption func(*Muxer)

func WithMuxerLogger(l *zap.Logger) MuxerOption {
	return func(m *Muxer) { m.log = l }
}

func WithMuxerRecordCodec(c RecordCodec) MuxerOption {
	return func(m *Muxer) { m.codec = c }
}

// WithScratchSize sets the largest configuration record the muxer emits.
func WithScratchSize(n int) MuxerOption {
	return func(m *Muxer) { m.scratch = make([]byte, n) }
}

// NewMuxer returns a muxer writing to sink. track may be nil.
func NewMuxer(sink PacketSink, track Track, opts ...MuxerOption) *Muxer {
	m := &Muxer{
		sink:  sink,
		track: track,
		codec: DecConfRecCodec{},
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.scratch == nil {
		m.scratch = make([]byte, DefaultScratchSize)
	}
	return m
}

func (m *Muxer) Stats() MuxerStats {
	return m.stats
}

// ConfigEmitted reports whether the sequence header tag has been sent.
func (m *Muxer) ConfigEmitted() bool {
	return m.configEmitted
}

// MakeConfigPacket emits the sequence header tag if VPS, SPS and PPS are
// known, either from the stream or from the track. It does nothing once the
// sequence header has been emitted. A set that failed to encode is not
// encoded again until one of its parameter sets changes.
func (m *Muxer) MakeConfigPacket() error {
	if m.configEmitted {
		return nil
	}
	if m.track != nil && m.track.Ready() {
		for _, nalu := range [][]byte{m.track.VPS(), m.track.SPS(), m.track.PPS()} {
			m.setParameterSet(nalu)
		}
	}
	if !m.ps.Complete() {
		m.log.Debug("sequence header postponed, parameter sets incomplete",
			zap.Int("vps", len(m.ps.VPS)), zap.Int("sps", len(m.ps.SPS)), zap.Int("pps", len(m.ps.PPS)))
		return fmt.Errorf("%w: parameter sets incomplete", ErrConfigDecode)
	}
	if m.configErr != nil {
		return m.configErr
	}
	record, err := m.makeConfigurationPayload()
	if err != nil {
		m.configErr = err
		m.stats.ConfigFailures++
		if errors.Is(err, ErrUnsupported) {
			if !m.warnedOnce {
				m.log.Warn("configuration record support unavailable, sequence header not sent")
				m.warnedOnce = true
			}
		} else {
			m.log.Warn("building H265 sequence header", zap.Error(err))
		}
		return err
	}
	pkt := flv.NewVideoPacket(flv.FrameKey, flv.PacketTypeSequenceHeader, 0, 0)
	pkt.Payload = append(pkt.Payload, record...)
	m.configEmitted = true
	m.stats.ConfigPackets++
	m.sink.AcceptPacket(pkt)
	return nil
}

// setParameterSet stores nalu and reports whether the stored sets changed.
func (m *Muxer) setParameterSet(nalu []byte) bool {
	if !m.ps.Set(nalu) {
		return false
	}
	m.configErr = nil
	return true
}

func (m *Muxer) makeConfigurationPayload() ([]byte, error) {
	rec, err := m.codec.Encode(m.ps.AnnexB())
	if err != nil {
		return nil, err
	}
	n, err := m.codec.Serialize(rec, m.scratch)
	if err != nil {
		return nil, err
	}
	return slices.Clone(m.scratch[:n]), nil
}

// InputFrame adds one NAL unit. A tag is emitted when the frame starts a
// new access unit; the last access unit stays pending until Flush.
func (m *Muxer) InputFrame(f *Frame) error {
	nalu := f.Payload()
	if len(nalu) == 0 {
		return fmt.Errorf("%w: empty frame", ErrMalformedInput)
	}
	m.stats.Frames++
	typ := hevc.GetNaluType(nalu[0])
	vcl := isVCL(typ)

	if isParameterSet(typ) && !m.configEmitted {
		m.setParameterSet(nalu)
		// The parameter set is forwarded in-band whether or not a sequence
		// header could be built.
		_ = m.MakeConfigPacket()
	}
	if slices.Contains(discardedTypes, typ) {
		m.stats.Discarded++
		return nil
	}
	if vcl && !m.configEmitted {
		// Once a complete set failed to encode, coded pictures pass through
		// with in-band parameter sets.
		if err := m.MakeConfigPacket(); err != nil && m.configErr == nil {
			m.stats.DroppedBeforeConfig++
			m.log.Debug("dropping coded picture before sequence header",
				zap.Stringer("type", typ), zap.Int64("dts", f.DTS))
			return nil
		}
	}

	if f.ConfigFrame() && m.pending != nil && m.hasVCL {
		m.Flush()
	}
	if m.pending != nil && (m.pending.Timestamp != uint32(f.DTS) ||
		(m.hasVCL && vcl && firstSliceInPicture(nalu))) {
		m.Flush()
	}
	if vcl {
		m.hasVCL = true
	}
	if m.pending == nil {
		frameType := uint8(flv.FrameInter)
		if f.ConfigFrame() || f.KeyFrame() {
			frameType = flv.FrameKey
		}
		cts := f.PTS - f.DTS
		if cts < 0 {
			cts = 0
		}
		if cts > flv.MaxCompositionTime {
			cts = flv.MaxCompositionTime
		}
		m.pending = flv.NewVideoPacket(frameType, flv.PacketTypeNALU, int32(cts), uint32(f.DTS))
	}
	m.pending.AppendNALU(nalu)
	return nil
}

// Flush emits the pending access unit, if any.
func (m *Muxer) Flush() {
	if m.pending == nil {
		return
	}
	m.stats.Packets++
	m.sink.AcceptPacket(m.pending)
	m.pending = nil
	m.hasVCL = false
}

// Reset forgets the parameter sets so that the next complete set produces a
// new sequence header. The pending access unit is kept.
func (m *Muxer) Reset() {
	m.ps.Reset()
	m.configEmitted = false
	m.configErr = nil
}
