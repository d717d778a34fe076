package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Comcast/gots/v2/packet"
	"github.com/Eyevinn/hevc-rtmp-tools/common"
	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/Eyevinn/hevc-rtmp-tools/h265"
	"github.com/Eyevinn/mp4ff/avc"
	"github.com/asticode/go-astits"
	"go.uber.org/zap"
)

const defaultFrameRate = 25

var errEnoughPictures = errors.New("max nr pictures reached")

// flvOutput writes muxed packets as FLV tags and collects statistics.
type flvOutput struct {
	fw     *flv.Writer
	stats  StreamStatistics
	nrPics int
	max    int
	err    error
}

func newFlvOutput(w io.Writer, o Options) *flvOutput {
	return &flvOutput{
		fw:    flv.NewWriter(w, false, true),
		stats: StreamStatistics{Type: "HEVC"},
		max:   o.MaxNrPictures,
	}
}

func (out *flvOutput) AcceptPacket(pkt *flv.Packet) {
	if out.err != nil {
		return
	}
	if out.max > 0 && out.nrPics >= out.max {
		out.err = errEnoughPictures
		return
	}
	if err := out.fw.WritePacket(pkt); err != nil {
		out.err = fmt.Errorf("writing flv tag %w", err)
		return
	}
	if pkt.IsSequenceHeader() {
		return
	}
	cts, _ := pkt.CompositionTime()
	out.stats.AddPicture(int64(pkt.Timestamp), int64(pkt.Timestamp)+int64(cts), pkt.IsKeyFrame())
	out.nrPics++
}

// done flushes the muxer and the file and reports the first write error.
func (out *flvOutput) done(mux *h265.Muxer, jp *JsonPrinter, o Options) error {
	mux.Flush()
	if out.err != nil && out.err != errEnoughPictures {
		return out.err
	}
	if err := out.fw.Flush(); err != nil {
		return fmt.Errorf("flushing flv output %w", err)
	}
	out.stats.Muxer = mux.Stats()
	jp.PrintStatistics(out.stats, o.ShowStatistics)
	return jp.Error()
}

func newMuxer(out *flvOutput, track h265.Track, log *zap.Logger, o Options) *h265.Muxer {
	opts := []h265.MuxerOption{h265.WithMuxerLogger(log), h265.WithMuxerRecordCodec(recordCodec(o))}
	if o.ScratchSize > 0 {
		opts = append(opts, h265.WithScratchSize(o.ScratchSize))
	}
	return h265.NewMuxer(out, track, opts...)
}

// MuxTS reads the first HEVC stream of an MPEG-TS input and writes it as
// FLV to flvW. Information is printed as JSON to textW. Timestamps are
// rebased so that the first DTS becomes 0.
func MuxTS(ctx context.Context, textW, flvW io.Writer, f io.Reader, o Options) error {
	log, err := NewLogger(o.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rd := bufio.NewReaderSize(f, 1000*common.PacketSize)
	if _, err := packet.Sync(rd); err != nil {
		return fmt.Errorf("syncing with reader %w", err)
	}
	dmx := astits.NewDemuxer(ctx, rd)
	jp := &JsonPrinter{W: textW, Indent: o.Indent}
	out := newFlvOutput(flvW, o)
	track := &h265.ParameterSetTrack{}
	mux := newMuxer(out, track, log, o)

	hevcPID := -1
	sdtPrinted := false
	var base, prevDTS, prevPTS int64 = -1, -1, -1
dataLoop:
	for {
		// Check if context was cancelled
		select {
		case <-ctx.Done():
			break dataLoop
		default:
		}

		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break dataLoop
			}
			return fmt.Errorf("reading next data %w", err)
		}

		if d.SDT != nil && !sdtPrinted {
			jp.PrintSdtInfo(d.SDT, o.ShowService)
			sdtPrinted = true
		}
		if hevcPID < 0 && d.PMT != nil {
			for _, es := range d.PMT.ElementaryStreams {
				if es.StreamType == astits.StreamTypeH265Video {
					hevcPID = int(es.ElementaryPID)
					log.Info("found HEVC stream", zap.Int("pid", hevcPID))
					break
				}
			}
		}
		pes := d.PES
		if pes == nil || int(d.PID) != hevcPID {
			continue
		}
		if pes.Header.OptionalHeader == nil || pes.Header.OptionalHeader.PTS == nil {
			log.Warn("PES without PTS", zap.Uint16("pid", d.PID))
			continue
		}
		pts := common.UnwrapTs(pes.Header.OptionalHeader.PTS.Base, prevPTS)
		dts := pts
		if pes.Header.OptionalHeader.DTS != nil {
			dts = common.UnwrapTs(pes.Header.OptionalHeader.DTS.Base, prevDTS)
		}
		prevPTS, prevDTS = pts, dts
		if base < 0 {
			base = dts
		}
		dtsMs, ptsMs := common.TsToMs(dts-base), common.TsToMs(pts-base)

		for _, nalu := range avc.ExtractNalusFromByteStream(pes.Data) {
			if len(nalu) == 0 {
				continue
			}
			track.Observe(nalu)
			if err := mux.InputFrame(h265.NewFrame(nalu, dtsMs, ptsMs)); err != nil {
				log.Warn("skipping NAL unit", zap.Error(err))
			}
		}
		if out.err != nil {
			break dataLoop
		}
	}
	if hevcPID < 0 {
		return fmt.Errorf("no HEVC stream found")
	}
	if w, h, err := track.ImageSize(); err == nil {
		log.Info("video size", zap.Uint32("width", w), zap.Uint32("height", h))
	}
	return out.done(mux, jp, o)
}

// MuxAnnexB writes an Annex-B HEVC byte stream as FLV to flvW. Pictures are
// given consecutive timestamps at o.FrameRate with PTS equal to DTS.
func MuxAnnexB(ctx context.Context, textW, flvW io.Writer, f io.Reader, o Options) error {
	log, err := NewLogger(o.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading elementary stream %w", err)
	}
	fps := int64(o.FrameRate)
	if fps <= 0 {
		fps = defaultFrameRate
	}
	jp := &JsonPrinter{W: textW, Indent: o.Indent}
	out := newFlvOutput(flvW, o)
	mux := newMuxer(out, nil, log, o)

	var s pictureSplitter
	for _, nalu := range avc.ExtractNalusFromByteStream(data) {
		select {
		case <-ctx.Done():
			return out.done(mux, jp, o)
		default:
		}
		if len(nalu) == 0 {
			continue
		}
		fr := h265.NewFrame(nalu, 0, 0)
		fr.DTS = s.next(fr) * common.TimeScale / fps
		fr.PTS = fr.DTS
		if err := mux.InputFrame(fr); err != nil {
			log.Warn("skipping NAL unit", zap.Error(err))
		}
		if out.err != nil {
			break
		}
	}
	return out.done(mux, jp, o)
}

// pictureSplitter numbers the pictures of a NAL unit sequence in decode order.
type pictureSplitter struct {
	pic     int64
	started bool
}

func (s *pictureSplitter) next(f *h265.Frame) int64 {
	switch {
	case f.VCL():
		if s.started && f.FirstSliceInPicture() {
			s.pic++
		}
		s.started = true
	case startsPicture(f):
		if s.started {
			s.pic++
			s.started = false
		}
	}
	return s.pic
}

// startsPicture reports non-VCL NAL units that may only precede the first
// slice of a picture.
func startsPicture(f *h265.Frame) bool {
	t := f.NaluType()
	switch {
	case f.ConfigFrame():
		return true
	case t == 35 || t == 39: // AUD, prefix SEI
		return true
	case t >= 41 && t <= 44:
		return true
	}
	return false
}
