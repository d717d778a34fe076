package h265

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"
)

// DefaultScratchSize bounds a serialized configuration record.
const DefaultScratchSize = 1024

// RecordCodec converts between parameter sets and the binary
// HEVCDecoderConfigurationRecord carried in sequence header tags.
type RecordCodec interface {
	Decode(record []byte) (ParameterSets, error)
	Encode(annexB []byte) (hevc.DecConfRec, error)
	Serialize(rec hevc.DecConfRec, buf []byte) (int, error)
}

// DecConfRecCodec is the RecordCodec backed by mp4ff.
type DecConfRecCodec struct{}

func (DecConfRecCodec) Decode(record []byte) (ParameterSets, error) {
	rec, err := hevc.DecodeHEVCDecConfRec(record)
	if err != nil {
		return ParameterSets{}, fmt.Errorf("%w: decoding hvcC %v", ErrConfigDecode, err)
	}
	ps := ParameterSets{
		VPS: rec.GetNalusForType(hevc.NALU_VPS),
		SPS: rec.GetNalusForType(hevc.NALU_SPS),
		PPS: rec.GetNalusForType(hevc.NALU_PPS),
	}
	if len(ps.VPS)+len(ps.SPS)+len(ps.PPS) == 0 {
		return ParameterSets{}, fmt.Errorf("%w: no parameter sets in record", ErrConfigDecode)
	}
	return ps, nil
}

func (DecConfRecCodec) Encode(annexB []byte) (hevc.DecConfRec, error) {
	var vps, sps, pps [][]byte
	for _, nalu := range avc.ExtractNalusFromByteStream(annexB) {
		if len(nalu) == 0 {
			continue
		}
		switch hevc.GetNaluType(nalu[0]) {
		case hevc.NALU_VPS:
			vps = append(vps, nalu)
		case hevc.NALU_SPS:
			sps = append(sps, nalu)
		case hevc.NALU_PPS:
			pps = append(pps, nalu)
		}
	}
	if len(vps) == 0 || len(sps) == 0 || len(pps) == 0 {
		return hevc.DecConfRec{}, fmt.Errorf("%w: need VPS, SPS and PPS, got %d/%d/%d",
			ErrConfigDecode, len(vps), len(sps), len(pps))
	}
	rec, err := hevc.CreateHEVCDecConfRec(vps, sps, pps, true, true, true, true)
	if err != nil {
		return hevc.DecConfRec{}, fmt.Errorf("%w: creating hvcC %v", ErrConfigDecode, err)
	}
	return rec, nil
}

func (DecConfRecCodec) Serialize(rec hevc.DecConfRec, buf []byte) (int, error) {
	if size := rec.Size(); size > uint64(len(buf)) {
		return 0, fmt.Errorf("%w: record needs %d bytes, scratch is %d", ErrConfigDecode, size, len(buf))
	}
	bw := &boundedWriter{buf: buf}
	if err := rec.Encode(bw); err != nil {
		return 0, fmt.Errorf("%w: encoding hvcC %v", ErrConfigDecode, err)
	}
	return bw.n, nil
}

// UnavailableCodec reports ErrUnsupported for every operation. Demuxers and
// muxers using it pass through coded pictures only.
type UnavailableCodec struct{}

func (UnavailableCodec) Decode([]byte) (ParameterSets, error) {
	return ParameterSets{}, ErrUnsupported
}

func (UnavailableCodec) Encode([]byte) (hevc.DecConfRec, error) {
	return hevc.DecConfRec{}, ErrUnsupported
}

func (UnavailableCodec) Serialize(hevc.DecConfRec, []byte) (int, error) {
	return 0, ErrUnsupported
}

// boundedWriter writes into a fixed buffer and fails instead of growing.
type boundedWriter struct {
	buf []byte
	n   int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		return 0, io.ErrShortBuffer
	}
	w.n += copy(w.buf[w.n:], p)
	return len(p), nil
}
