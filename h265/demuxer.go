package h265

import (
	"errors"
	"fmt"

	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/nareix/joy4/utils/bits/pio"
	"go.uber.org/zap"
)

// minMediaTagSize is the smallest media tag holding a NAL unit: header,
// one length field and at least one payload byte.
const minMediaTagSize = flv.VideoHeaderSize + 4 + 1

type DemuxerStats struct {
	Packets        int `json:"packets"`
	ConfigFrames   int `json:"configFrames"`
	Frames         int `json:"frames"`
	Ignored        int `json:"ignored,omitempty"`
	Truncated      int `json:"truncated,omitempty"`
	Malformed      int `json:"malformed,omitempty"`
	DecodeFailures int `json:"decodeFailures,omitempty"`
}

// Demuxer turns H.265 video tags into Annex-B frames. A Demuxer serves one
// stream and must not be used from several goroutines at once.
type Demuxer struct {
	sink       FrameSink
	codec      RecordCodec
	log        *zap.Logger
	warnedOnce bool
	stats      DemuxerStats
}

type DemuxerOption func(*Demuxer)

func WithLogger(l *zap.Logger) DemuxerOption {
	return func(d *Demuxer) { d.log = l }
}

func WithRecordCodec(c RecordCodec) DemuxerOption {
	return func(d *Demuxer) { d.codec = c }
}

func NewDemuxer(sink FrameSink, opts ...DemuxerOption) *Demuxer {
	d := &Demuxer{
		sink:  sink,
		codec: DecConfRecCodec{},
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Demuxer) Stats() DemuxerStats {
	return d.stats
}

// ProcessPacket extracts the frames of one video tag and hands them to the
// sink. A returned error describes why the packet was dropped; the demuxer
// stays usable.
func (d *Demuxer) ProcessPacket(pkt *flv.Packet) error {
	d.stats.Packets++
	if len(pkt.Payload) > 0 && pkt.CodecID() != flv.CodecH265 {
		d.stats.Malformed++
		return fmt.Errorf("%w: codec id %d", ErrUnsupportedCodec, pkt.CodecID())
	}
	if pkt.IsSequenceHeader() {
		return d.processConfig(pkt)
	}
	d.processMedia(pkt)
	return nil
}

func (d *Demuxer) processConfig(pkt *flv.Packet) error {
	if len(pkt.Payload) < flv.VideoHeaderSize+1 {
		d.stats.Malformed++
		d.log.Warn("bad H265 sequence header", zap.Int("size", len(pkt.Payload)))
		return fmt.Errorf("%w: sequence header of %d bytes", ErrMalformedInput, len(pkt.Payload))
	}
	ps, err := d.codec.Decode(pkt.Payload[flv.VideoHeaderSize:])
	if err != nil {
		d.stats.DecodeFailures++
		d.reportCodecError("decoding configuration record", err)
		return err
	}
	annexB := ps.AnnexB()
	if len(annexB) == 0 {
		d.stats.DecodeFailures++
		return fmt.Errorf("%w: empty configuration record", ErrConfigDecode)
	}
	ts := int64(pkt.Timestamp)
	d.stats.ConfigFrames++
	d.sink.AcceptFrame(&Frame{Data: annexB, DTS: ts, PTS: ts})
	return nil
}

func (d *Demuxer) processMedia(pkt *flv.Packet) {
	data := pkt.Payload
	if len(data) < minMediaTagSize {
		d.stats.Ignored++
		return
	}
	cts := flv.CompositionTime(data[2:5])
	dts := int64(pkt.Timestamp)
	pts := dts + int64(cts)

	offset := flv.VideoHeaderSize
	for offset+4 < len(data) {
		length := pio.U32BE(data[offset:])
		offset += 4
		if uint64(length) > uint64(len(data)-offset) {
			d.stats.Truncated++
			d.log.Warn("NAL unit length overruns tag",
				zap.Uint32("length", length), zap.Int("remaining", len(data)-offset), zap.Uint32("dts", pkt.Timestamp))
			return
		}
		size := int(length)
		if size > 0 {
			d.stats.Frames++
			d.sink.AcceptFrame(NewFrame(data[offset:offset+size], dts, pts))
		}
		offset += size
	}
	if rem := len(data) - offset; rem > 0 && rem < 4 {
		d.stats.Truncated++
	}
}

func (d *Demuxer) reportCodecError(msg string, err error) {
	if errors.Is(err, ErrUnsupported) {
		if !d.warnedOnce {
			d.log.Warn("configuration record support unavailable, passing through coded pictures only")
			d.warnedOnce = true
		}
		return
	}
	d.log.Warn(msg, zap.Error(err))
}
