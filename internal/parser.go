package internal

import (
	"context"
	"fmt"
	"io"

	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/Eyevinn/hevc-rtmp-tools/h265"
	"go.uber.org/zap"
)

func recordCodec(o Options) h265.RecordCodec {
	if o.NoRecord {
		return h265.UnavailableCodec{}
	}
	return h265.DecConfRecCodec{}
}

// readVideoTags calls fn for every H.265 video tag of an FLV stream until
// the stream ends, ctx is cancelled or fn returns false.
func readVideoTags(ctx context.Context, f io.Reader, log *zap.Logger, fn func(pkt *flv.Packet) bool) error {
	rd := flv.NewReader(f)
	if err := rd.ReadHeader(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := rd.ReadPacket()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading next tag %w", err)
		}
		if pkt.TypeID != flv.TypeVideo {
			continue
		}
		if pkt.CodecID() != flv.CodecH265 {
			log.Debug("skipping non-HEVC video tag", zap.Uint8("codecID", pkt.CodecID()))
			continue
		}
		if !fn(pkt) {
			return nil
		}
	}
}

// ParseFLV prints information about every HEVC video tag in an FLV stream.
func ParseFLV(ctx context.Context, w io.Writer, f io.Reader, o Options) error {
	log, err := NewLogger(o.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jp := &JsonPrinter{W: w, Indent: o.Indent}
	fc := &h265.FrameCollector{}
	dmx := h265.NewDemuxer(fc, h265.WithLogger(log), h265.WithRecordCodec(recordCodec(o)))
	ps := &HevcPS{Statistics: StreamStatistics{Type: "HEVC"}}
	nrPics := 0

	err = readVideoTags(ctx, f, log, func(pkt *flv.Packet) bool {
		fc.Frames = fc.Frames[:0]
		ti := TagInfo{
			DTS:            pkt.Timestamp,
			PTS:            int64(pkt.Timestamp),
			Key:            pkt.IsKeyFrame(),
			SequenceHeader: pkt.IsSequenceHeader(),
			Size:           len(pkt.Payload),
		}
		if err := dmx.ProcessPacket(pkt); err != nil {
			ti.Error = err.Error()
			ps.Statistics.Errors = append(ps.Statistics.Errors, fmt.Sprintf("dts %d: %s", pkt.Timestamp, err))
		}
		if len(fc.Frames) > 0 {
			ti.PTS = fc.Frames[0].PTS
		}
		ps.describeFrames(jp, &ti, fc.Frames, o)
		jp.Print(ti, o.ShowTags)

		if !ti.SequenceHeader && hasPicture(fc.Frames) {
			ps.Statistics.AddPicture(int64(pkt.Timestamp), ti.PTS, ti.Key)
			nrPics++
		}
		// Keep looping if MaxNrPictures equals 0
		return o.MaxNrPictures == 0 || nrPics < o.MaxNrPictures
	})
	if err != nil {
		return err
	}

	ps.Statistics.Demuxer = dmx.Stats()
	jp.PrintStatistics(ps.Statistics, o.ShowStatistics)
	return jp.Error()
}

// DemuxFLV writes the HEVC video of an FLV stream to w as an Annex-B byte stream.
func DemuxFLV(ctx context.Context, w io.Writer, f io.Reader, o Options) error {
	log, err := NewLogger(o.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var writeErr error
	sink := h265.FrameSinkFunc(func(fr *h265.Frame) {
		if writeErr == nil {
			_, writeErr = w.Write(fr.Data)
		}
	})
	dmx := h265.NewDemuxer(sink, h265.WithLogger(log), h265.WithRecordCodec(recordCodec(o)))
	err = readVideoTags(ctx, f, log, func(pkt *flv.Packet) bool {
		if err := dmx.ProcessPacket(pkt); err != nil {
			log.Warn("dropping tag", zap.Uint32("dts", pkt.Timestamp), zap.Error(err))
		}
		return writeErr == nil
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return fmt.Errorf("writing elementary stream %w", writeErr)
	}
	st := dmx.Stats()
	log.Info("demux done", zap.Int("packets", st.Packets), zap.Int("frames", st.Frames),
		zap.Int("configFrames", st.ConfigFrames), zap.Int("truncated", st.Truncated))
	return nil
}

func hasPicture(frames []*h265.Frame) bool {
	for _, f := range frames {
		if f.VCL() {
			return true
		}
	}
	return false
}
