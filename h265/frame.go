// Package h265 converts between H.265 Annex-B elementary streams and
// RTMP/FLV video tags carrying length-prefixed NAL units.
package h265

import (
	"errors"

	"github.com/Eyevinn/mp4ff/hevc"
)

var (
	ErrMalformedInput   = errors.New("malformed input")
	ErrConfigDecode     = errors.New("configuration record failure")
	ErrUnsupported      = errors.New("configuration record support unavailable")
	ErrUnsupportedCodec = errors.New("not an H.265 video tag")
)

// StartCode is the Annex-B prefix added to every demuxed NAL unit.
var StartCode = []byte{0x00, 0x00, 0x00, 0x01}

const (
	vclLast   hevc.NaluType = 31
	irapFirst hevc.NaluType = 16
	irapLast  hevc.NaluType = 23
)

// Frame is one NAL unit in Annex-B form. Timestamps use the container clock.
type Frame struct {
	Data []byte
	DTS  int64
	PTS  int64
}

// NewFrame copies nalu behind a fresh start code.
func NewFrame(nalu []byte, dts, pts int64) *Frame {
	data := make([]byte, 0, len(StartCode)+len(nalu))
	data = append(data, StartCode...)
	data = append(data, nalu...)
	return &Frame{Data: data, DTS: dts, PTS: pts}
}

// PrefixSize returns the length of the leading start code (4, 3 or 0).
func (f *Frame) PrefixSize() int {
	d := f.Data
	switch {
	case len(d) >= 4 && d[0] == 0 && d[1] == 0 && d[2] == 0 && d[3] == 1:
		return 4
	case len(d) >= 3 && d[0] == 0 && d[1] == 0 && d[2] == 1:
		return 3
	}
	return 0
}

// Payload returns the NAL unit without start code.
func (f *Frame) Payload() []byte {
	return f.Data[f.PrefixSize():]
}

func (f *Frame) NaluType() hevc.NaluType {
	p := f.Payload()
	if len(p) == 0 {
		return hevc.NaluType(0xff)
	}
	return hevc.GetNaluType(p[0])
}

// KeyFrame reports an IRAP picture (BLA, IDR, CRA or reserved IRAP).
func (f *Frame) KeyFrame() bool {
	t := f.NaluType()
	return t >= irapFirst && t <= irapLast
}

// VCL reports coded slice data.
func (f *Frame) VCL() bool {
	return isVCL(f.NaluType())
}

// FirstSliceInPicture reports a VCL NAL unit starting a new picture.
func (f *Frame) FirstSliceInPicture() bool {
	return f.VCL() && firstSliceInPicture(f.Payload())
}

// ConfigFrame reports a VPS, SPS or PPS.
func (f *Frame) ConfigFrame() bool {
	return isParameterSet(f.NaluType())
}

func isParameterSet(t hevc.NaluType) bool {
	return t == hevc.NALU_VPS || t == hevc.NALU_SPS || t == hevc.NALU_PPS
}

func isVCL(t hevc.NaluType) bool {
	return t <= vclLast
}

// firstSliceInPicture reads first_slice_segment_in_pic_flag of a VCL NAL unit.
func firstSliceInPicture(nalu []byte) bool {
	return len(nalu) > 2 && nalu[2]&0x80 != 0
}
