package internal

import (
	"fmt"

	"github.com/Eyevinn/hevc-rtmp-tools/h265"
	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"
)

// HevcPS keeps the latest parameter sets of a stream for printing.
type HevcPS struct {
	spss       map[uint32]*hevc.SPS
	ppss       map[uint32]*hevc.PPS
	vpsnalu    []byte
	spsnalus   map[uint32][]byte
	ppsnalus   map[uint32][]byte
	Statistics StreamStatistics
}

func (a *HevcPS) setSPS(nalu []byte) error {
	if a.spss == nil {
		a.spss = make(map[uint32]*hevc.SPS, 1)
		a.ppss = make(map[uint32]*hevc.PPS, 1)
		a.spsnalus = make(map[uint32][]byte, 1)
		a.ppsnalus = make(map[uint32][]byte, 1)
	}
	sps, err := hevc.ParseSPSNALUnit(nalu)
	if err != nil {
		return err
	}
	a.spss[uint32(sps.SpsID)] = sps
	a.spsnalus[uint32(sps.SpsID)] = nalu
	return nil
}

func (a *HevcPS) setPPS(nalu []byte) error {
	if a.spss == nil {
		return fmt.Errorf("PPS before SPS")
	}
	pps, err := hevc.ParsePPSNALUnit(nalu, a.spss)
	if err != nil {
		return err
	}
	a.ppss[pps.PicParameterSetID] = pps
	a.ppsnalus[pps.PicParameterSetID] = nalu
	return nil
}

// describeFrames lists the NAL units of the frames demuxed from one tag and
// prints any parameter sets found among them.
func (a *HevcPS) describeFrames(jp *JsonPrinter, ti *TagInfo, frames []*h265.Frame, o Options) {
	gotPS := false
	for _, f := range frames {
		for _, nalu := range avc.ExtractNalusFromByteStream(f.Data) {
			if len(nalu) == 0 {
				continue
			}
			naluType := hevc.GetNaluType(nalu[0])
			nd := NaluData{Type: naluType.String(), Len: len(nalu)}
			switch naluType {
			case hevc.NALU_VPS:
				a.vpsnalu = nalu
				gotPS = true
			case hevc.NALU_SPS:
				if err := a.setSPS(nalu); err != nil {
					nd.Data = fmt.Sprintf("cannot parse SPS: %s", err)
				}
				gotPS = true
			case hevc.NALU_PPS:
				if err := a.setPPS(nalu); err != nil {
					nd.Data = fmt.Sprintf("cannot parse PPS: %s", err)
				}
				gotPS = true
			}
			if o.ShowNALU {
				ti.NALUS = append(ti.NALUS, nd)
			}
		}
	}

	if gotPS {
		jp.PrintPS("VPS", ti.DTS, a.vpsnalu, nil, o.VerbosePSInfo, o.ShowPS)
		for nr := range a.spss {
			jp.PrintPS("SPS", ti.DTS, a.spsnalus[nr], a.spss[nr], o.VerbosePSInfo, o.ShowPS)
		}
		for nr := range a.ppss {
			jp.PrintPS("PPS", ti.DTS, a.ppsnalus[nr], a.ppss[nr], o.VerbosePSInfo, o.ShowPS)
		}
	}
}
