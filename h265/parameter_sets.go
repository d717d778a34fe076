package h265

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/hevc"
	"golang.org/x/exp/slices"
)

// ParameterSets holds raw VPS/SPS/PPS NAL units without start codes.
type ParameterSets struct {
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

func (ps *ParameterSets) Complete() bool {
	return len(ps.VPS) > 0 && len(ps.SPS) > 0 && len(ps.PPS) > 0
}

// AnnexB returns start code + VPS + start code + SPS + start code + PPS,
// with every cached NAL unit in that order.
func (ps *ParameterSets) AnnexB() []byte {
	var out []byte
	for _, group := range [][][]byte{ps.VPS, ps.SPS, ps.PPS} {
		for _, nalu := range group {
			out = append(out, StartCode...)
			out = append(out, nalu...)
		}
	}
	return out
}

// Set stores nalu as the only parameter set of its type. It returns false if
// nalu is not a parameter set or if the same bytes were already stored.
func (ps *ParameterSets) Set(nalu []byte) bool {
	if len(nalu) == 0 {
		return false
	}
	var slot *[][]byte
	switch hevc.GetNaluType(nalu[0]) {
	case hevc.NALU_VPS:
		slot = &ps.VPS
	case hevc.NALU_SPS:
		slot = &ps.SPS
	case hevc.NALU_PPS:
		slot = &ps.PPS
	default:
		return false
	}
	if len(*slot) == 1 && slices.Equal((*slot)[0], nalu) {
		return false
	}
	*slot = [][]byte{slices.Clone(nalu)}
	return true
}

func (ps *ParameterSets) Reset() {
	ps.VPS, ps.SPS, ps.PPS = nil, nil, nil
}

// Track exposes the parameter sets a muxer may pull before they are seen in
// the elementary stream.
type Track interface {
	Ready() bool
	VPS() []byte
	SPS() []byte
	PPS() []byte
}

// ParameterSetTrack is a Track fed from observed NAL units or from an
// existing decoder configuration record.
type ParameterSetTrack struct {
	ps  ParameterSets
	sps *hevc.SPS
}

// NewRecordTrack returns a track holding the parameter sets of rec.
func NewRecordTrack(rec hevc.DecConfRec) *ParameterSetTrack {
	t := &ParameterSetTrack{}
	for _, typ := range []hevc.NaluType{hevc.NALU_VPS, hevc.NALU_SPS, hevc.NALU_PPS} {
		for _, nalu := range rec.GetNalusForType(typ) {
			t.Observe(nalu)
		}
	}
	return t
}

// Observe records nalu if it is a parameter set.
func (t *ParameterSetTrack) Observe(nalu []byte) {
	if t.ps.Set(nalu) && hevc.GetNaluType(nalu[0]) == hevc.NALU_SPS {
		t.sps = nil
	}
}

func (t *ParameterSetTrack) Ready() bool {
	return t.ps.Complete()
}

func (t *ParameterSetTrack) VPS() []byte { return first(t.ps.VPS) }
func (t *ParameterSetTrack) SPS() []byte { return first(t.ps.SPS) }
func (t *ParameterSetTrack) PPS() []byte { return first(t.ps.PPS) }

// ImageSize parses the SPS and returns the picture size.
func (t *ParameterSetTrack) ImageSize() (width, height uint32, err error) {
	if t.sps == nil {
		nalu := t.SPS()
		if nalu == nil {
			return 0, 0, fmt.Errorf("no SPS")
		}
		t.sps, err = hevc.ParseSPSNALUnit(nalu)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing SPS %w", err)
		}
	}
	width, height = t.sps.ImageSize()
	return width, height, nil
}

func first(nalus [][]byte) []byte {
	if len(nalus) == 0 {
		return nil
	}
	return nalus[0]
}
