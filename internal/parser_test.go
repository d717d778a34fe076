package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Eyevinn/hevc-rtmp-tools/flv"
	"github.com/Eyevinn/hevc-rtmp-tools/h265"
	"github.com/asticode/go-astits"
	"github.com/stretchr/testify/require"
)

var (
	testVPS = []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60, 0x90}
	testSPS = []byte{0x42, 0x01, 0x01, 0x01, 0x60, 0xb0, 0x5d, 0xa0, 0x02}
	testPPS = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
	testAUD = []byte{0x46, 0x01, 0x50}
	testIDR = []byte{0x26, 0x01, 0xa0, 0x11, 0x22, 0x33}
	testTR1 = []byte{0x02, 0x01, 0xa0, 0x44, 0x55}
	testTR2 = []byte{0x02, 0x01, 0xa0, 0x66, 0x77, 0x88}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, h265.StartCode...)
		out = append(out, n...)
	}
	return out
}

func testStream() []byte {
	return annexB(testVPS, testSPS, testPPS, testIDR, testTR1, testTR2)
}

func readTagsEOF(t *testing.T, data []byte) []*flv.Packet {
	t.Helper()
	rd := flv.NewReader(bytes.NewReader(data))
	require.NoError(t, rd.ReadHeader())
	var tags []*flv.Packet
	for {
		pkt, err := rd.ReadPacket()
		if err == io.EOF {
			return tags
		}
		require.NoError(t, err)
		tags = append(tags, pkt)
	}
}

func jsonLines(t *testing.T, text string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		m := make(map[string]any)
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestMuxAnnexBInBand(t *testing.T) {
	o := Options{NoRecord: true, FrameRate: 25, ShowStatistics: true}
	var text, flvBuf bytes.Buffer
	err := MuxAnnexB(context.TODO(), &text, &flvBuf, bytes.NewReader(testStream()), o)
	require.NoError(t, err)

	tags := readTagsEOF(t, flvBuf.Bytes())
	require.Len(t, tags, 3)
	require.Equal(t, []uint32{0, 40, 80}, []uint32{tags[0].Timestamp, tags[1].Timestamp, tags[2].Timestamp})
	require.True(t, tags[0].IsKeyFrame())
	require.False(t, tags[1].IsKeyFrame())
	for _, tag := range tags {
		require.Equal(t, uint8(flv.CodecH265), tag.CodecID())
		require.False(t, tag.IsSequenceHeader())
	}

	lines := jsonLines(t, text.String())
	require.Len(t, lines, 1)
	require.Equal(t, 25.0, lines[0]["frameRate"])
	muxer := lines[0]["muxer"].(map[string]any)
	require.Equal(t, 3.0, muxer["packets"])
	require.Equal(t, 6.0, muxer["frames"])
}

func TestMuxAnnexBMaxPictures(t *testing.T) {
	o := Options{NoRecord: true, MaxNrPictures: 2}
	var text, flvBuf bytes.Buffer
	err := MuxAnnexB(context.TODO(), &text, &flvBuf, bytes.NewReader(testStream()), o)
	require.NoError(t, err)
	require.Len(t, readTagsEOF(t, flvBuf.Bytes()), 2)
	require.Empty(t, text.String())
}

func TestMuxAnnexBDiscardsAUD(t *testing.T) {
	o := Options{NoRecord: true}
	in := annexB(testAUD, testVPS, testSPS, testPPS, testIDR, testAUD, testTR1)
	var text, flvBuf bytes.Buffer
	require.NoError(t, MuxAnnexB(context.TODO(), &text, &flvBuf, bytes.NewReader(in), o))

	var out bytes.Buffer
	require.NoError(t, DemuxFLV(context.TODO(), &out, bytes.NewReader(flvBuf.Bytes()), o))
	require.Equal(t, annexB(testVPS, testSPS, testPPS, testIDR, testTR1), out.Bytes())
}

func TestDemuxFLVRoundTrip(t *testing.T) {
	o := Options{NoRecord: true}
	var text, flvBuf bytes.Buffer
	require.NoError(t, MuxAnnexB(context.TODO(), &text, &flvBuf, bytes.NewReader(testStream()), o))

	var out bytes.Buffer
	require.NoError(t, DemuxFLV(context.TODO(), &out, bytes.NewReader(flvBuf.Bytes()), o))
	require.Equal(t, testStream(), out.Bytes())
}

func TestDemuxFLVNotFLV(t *testing.T) {
	var out bytes.Buffer
	err := DemuxFLV(context.TODO(), &out, strings.NewReader("this is not an flv file"), Options{})
	require.ErrorIs(t, err, flv.ErrNotFLV)
}

func TestParseFLV(t *testing.T) {
	o := Options{NoRecord: true}
	var text, flvBuf bytes.Buffer
	require.NoError(t, MuxAnnexB(context.TODO(), &text, &flvBuf, bytes.NewReader(testStream()), o))

	cases := []struct {
		name      string
		options   Options
		wantLines int
		wantNALUs int
	}{
		{"tags_and_statistics", Options{NoRecord: true, ShowTags: true, ShowStatistics: true}, 4, 0},
		{"tags_with_nalus", Options{NoRecord: true, ShowTags: true, ShowNALU: true}, 3, 4},
		{"max_pictures", Options{NoRecord: true, ShowTags: true, MaxNrPictures: 2}, 2, 0},
		{"statistics_only", Options{NoRecord: true, ShowStatistics: true}, 1, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := bytes.Buffer{}
			err := ParseFLV(context.TODO(), &buf, bytes.NewReader(flvBuf.Bytes()), c.options)
			require.NoError(t, err)
			lines := jsonLines(t, buf.String())
			require.Len(t, lines, c.wantLines)
			if c.options.ShowTags {
				first := lines[0]
				require.Equal(t, 0.0, first["dts"])
				require.Equal(t, true, first["key"])
				if c.wantNALUs > 0 {
					require.Len(t, first["nalus"], c.wantNALUs)
				} else {
					require.NotContains(t, first, "nalus")
				}
			}
			if c.options.ShowStatistics {
				stats := lines[len(lines)-1]
				require.Equal(t, "HEVC", stats["streamType"])
				require.Equal(t, 25.0, stats["frameRate"])
				require.Contains(t, stats, "demuxer")
			}
		})
	}
}

func TestMuxTS(t *testing.T) {
	var ts bytes.Buffer
	tm := astits.NewMuxer(context.TODO(), &ts)
	require.NoError(t, tm.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: 256,
		StreamType:    astits.StreamTypeH265Video,
	}))
	tm.SetPCRPID(256)

	pictures := []struct {
		nalus    [][]byte
		dts, pts int64
	}{
		{[][]byte{testAUD, testVPS, testSPS, testPPS, testIDR}, 900000, 907200},
		{[][]byte{testAUD, testTR1}, 903600, 903600},
		{[][]byte{testAUD, testTR2}, 907200, 914400},
	}
	for _, p := range pictures {
		_, err := tm.WriteData(&astits.MuxerData{
			PID: 256,
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					StreamID: 0xe0,
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorBothPresent,
						PTS:             &astits.ClockReference{Base: p.pts},
						DTS:             &astits.ClockReference{Base: p.dts},
					},
				},
				Data: annexB(p.nalus...),
			},
		})
		require.NoError(t, err)
	}

	o := Options{NoRecord: true, ShowStatistics: true}
	var text, flvBuf bytes.Buffer
	require.NoError(t, MuxTS(context.TODO(), &text, &flvBuf, bytes.NewReader(ts.Bytes()), o))

	tags := readTagsEOF(t, flvBuf.Bytes())
	require.Len(t, tags, 3)
	require.Equal(t, uint32(0), tags[0].Timestamp)
	require.Equal(t, uint32(40), tags[1].Timestamp)
	require.Equal(t, uint32(80), tags[2].Timestamp)
	cts, err := tags[0].CompositionTime()
	require.NoError(t, err)
	require.Equal(t, int32(80), cts)
	cts, err = tags[2].CompositionTime()
	require.NoError(t, err)
	require.Equal(t, int32(80), cts)

	var out bytes.Buffer
	require.NoError(t, DemuxFLV(context.TODO(), &out, bytes.NewReader(flvBuf.Bytes()), o))
	require.Equal(t, testStream(), out.Bytes())
}

func TestMuxTSWithoutHEVC(t *testing.T) {
	var ts bytes.Buffer
	tm := astits.NewMuxer(context.TODO(), &ts)
	require.NoError(t, tm.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: 256,
		StreamType:    astits.StreamTypeH264Video,
	}))
	tm.SetPCRPID(256)
	_, err := tm.WriteTables()
	require.NoError(t, err)

	var text, flvBuf bytes.Buffer
	err = MuxTS(context.TODO(), &text, &flvBuf, bytes.NewReader(ts.Bytes()), Options{})
	require.Error(t, err)
}

func TestLoadOptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	cfg := `maxNrPictures: 10
indent: true
showPS: true
noRecord: true
frameRate: 50
scratchSize: 2048
logLevel: debug
output: out.flv
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	o := Options{ShowStatistics: true}
	require.NoError(t, LoadOptionsFile(path, &o))
	require.Equal(t, Options{
		MaxNrPictures:  10,
		Indent:         true,
		ShowPS:         true,
		ShowStatistics: true,
		NoRecord:       true,
		FrameRate:      50,
		ScratchSize:    2048,
		LogLevel:       "debug",
		OutPutTo:       "out.flv",
	}, o)

	require.Error(t, LoadOptionsFile(filepath.Join(t.TempDir(), "missing.yaml"), &o))
	require.NoError(t, os.WriteFile(path, []byte("frameRate: [1, 2"), 0644))
	require.Error(t, LoadOptionsFile(path, &o))
}

func TestOpenOutput(t *testing.T) {
	var buf bytes.Buffer
	w, closeOut, err := OpenOutput(&buf, Options{OutPutTo: "-"})
	require.NoError(t, err)
	require.Equal(t, &buf, w)
	require.NoError(t, closeOut())

	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))
	w, closeOut, err = OpenOutput(&buf, Options{OutPutTo: path})
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, closeOut())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}
