package h265

import (
	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"
)

var (
	testVPS = []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60, 0x90}
	testSPS = []byte{0x42, 0x01, 0x01, 0x01, 0x60, 0xb0, 0x5d, 0xa0, 0x02}
	testPPS = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
	testAUD = []byte{0x46, 0x01, 0x50}
	testSEI = []byte{0x4e, 0x01, 0x05, 0x1a, 0x47, 0x56}
)

// slice returns a NAL unit of type typ with first_slice_segment_in_pic_flag set to first.
func slice(typ hevc.NaluType, first bool, body ...byte) []byte {
	b2 := byte(0x20)
	if first {
		b2 |= 0x80
	}
	nalu := []byte{byte(typ) << 1, 0x01, b2}
	return append(nalu, body...)
}

func idr(first bool, body ...byte) []byte {
	return slice(hevc.NALU_IDR_W_RADL, first, body...)
}

func trail(first bool, body ...byte) []byte {
	return slice(hevc.NaluType(1), first, body...)
}

// recordCodec builds records without parsing the SPS so that short
// synthetic parameter sets can be used.
type recordCodec struct {
	DecConfRecCodec
	encodes int
}

func (c *recordCodec) Encode(annexB []byte) (hevc.DecConfRec, error) {
	c.encodes++
	var vps, sps, pps [][]byte
	for _, nalu := range avc.ExtractNalusFromByteStream(annexB) {
		switch hevc.GetNaluType(nalu[0]) {
		case hevc.NALU_VPS:
			vps = append(vps, nalu)
		case hevc.NALU_SPS:
			sps = append(sps, nalu)
		case hevc.NALU_PPS:
			pps = append(pps, nalu)
		}
	}
	return testRecord(vps, sps, pps), nil
}

func testRecord(vps, sps, pps [][]byte) hevc.DecConfRec {
	return hevc.DecConfRec{
		ConfigurationVersion: 1,
		GeneralProfileIDC:    1,
		GeneralLevelIDC:      93,
		ChromaFormatIDC:      1,
		NumTemporalLayers:    1,
		LengthSizeMinusOne:   3,
		NaluArrays: []hevc.NaluArray{
			hevc.NewNaluArray(true, hevc.NALU_VPS, vps),
			hevc.NewNaluArray(true, hevc.NALU_SPS, sps),
			hevc.NewNaluArray(true, hevc.NALU_PPS, pps),
		},
	}
}

// testRecordBytes is a serialized record holding testVPS, testSPS and testPPS.
func testRecordBytes() []byte {
	buf := make([]byte, DefaultScratchSize)
	n, err := DecConfRecCodec{}.Serialize(testRecord([][]byte{testVPS}, [][]byte{testSPS}, [][]byte{testPPS}), buf)
	if err != nil {
		panic(err)
	}
	return buf[:n]
}

func mediaPacket(dts uint32, cts int32, nalus ...[]byte) *flv.Packet {
	pkt := flv.NewVideoPacket(flv.FrameInter, flv.PacketTypeNALU, cts, dts)
	for _, n := range nalus {
		pkt.AppendNALU(n)
	}
	return pkt
}

func configPacket(record []byte) *flv.Packet {
	pkt := flv.NewVideoPacket(flv.FrameKey, flv.PacketTypeSequenceHeader, 0, 0)
	pkt.Payload = append(pkt.Payload, record...)
	return pkt
}

// nalus splits a media tag body into its length-prefixed NAL units.
func nalus(pkt *flv.Packet) ([][]byte, error) {
	return avc.GetNalusFromSample(pkt.Body())
}
