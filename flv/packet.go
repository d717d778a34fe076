package flv

import (
	"errors"
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

// Video tag header values. CodecH265 is the codec id used by the de-facto
// HEVC-over-RTMP extension.
const (
	CodecH264 = 7
	CodecH265 = 12

	FrameKey        = 1
	FrameInter      = 2
	FrameDisposable = 3

	PacketTypeSequenceHeader = 0
	PacketTypeNALU           = 1

	// VideoHeaderSize is flags + packet type + 24-bit composition time.
	VideoHeaderSize = 5
)

// RTMP routing values for video messages.
const (
	ChunkVideo  = 6
	StreamMedia = 1
	TypeAudio   = 8
	TypeVideo   = 9
	TypeScript  = 18
)

// CompositionTime limits of the signed 24-bit field.
const (
	MinCompositionTime = -(1 << 23)
	MaxCompositionTime = 1<<23 - 1
)

var ErrShortTag = errors.New("flv: video tag too short")

// Packet is one RTMP video message / FLV video tag body.
type Packet struct {
	Payload   []byte
	Timestamp uint32
	ChunkID   uint32
	StreamID  uint32
	TypeID    uint8
}

// NewVideoPacket returns a packet routed as an RTMP video message with the
// 5 byte video header already written.
func NewVideoPacket(frameType, packetType uint8, cts int32, timestamp uint32) *Packet {
	payload := make([]byte, VideoHeaderSize, 64)
	payload[0] = frameType<<4 | CodecH265
	payload[1] = packetType
	PutCompositionTime(payload[2:], cts)
	return &Packet{
		Payload:   payload,
		Timestamp: timestamp,
		ChunkID:   ChunkVideo,
		StreamID:  StreamMedia,
		TypeID:    TypeVideo,
	}
}

func (p *Packet) CodecID() uint8 {
	if len(p.Payload) == 0 {
		return 0
	}
	return p.Payload[0] & 0x0f
}

func (p *Packet) FrameType() uint8 {
	if len(p.Payload) == 0 {
		return 0
	}
	return p.Payload[0] >> 4
}

func (p *Packet) AVCPacketType() uint8 {
	if len(p.Payload) < 2 {
		return 0xff
	}
	return p.Payload[1]
}

// IsSequenceHeader reports whether the tag carries a decoder configuration record.
func (p *Packet) IsSequenceHeader() bool {
	return len(p.Payload) >= 2 && p.Payload[1] == PacketTypeSequenceHeader
}

func (p *Packet) IsKeyFrame() bool {
	return p.FrameType() == FrameKey
}

// CompositionTime returns the signed CTS field of the video header.
func (p *Packet) CompositionTime() (int32, error) {
	if len(p.Payload) < VideoHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortTag, len(p.Payload))
	}
	return CompositionTime(p.Payload[2:5]), nil
}

// Body returns the bytes following the video header.
func (p *Packet) Body() []byte {
	if len(p.Payload) < VideoHeaderSize {
		return nil
	}
	return p.Payload[VideoHeaderSize:]
}

// CompositionTime sign-extends a 24-bit big-endian two's complement value.
func CompositionTime(b []byte) int32 {
	return pio.I24BE(b)
}

// PutCompositionTime writes cts as 24-bit big-endian two's complement.
// Values outside the 24-bit range are clamped.
func PutCompositionTime(b []byte, cts int32) {
	if cts > MaxCompositionTime {
		cts = MaxCompositionTime
	} else if cts < MinCompositionTime {
		cts = MinCompositionTime
	}
	pio.PutI24BE(b, cts)
}

// AppendNALU appends a 4 byte big-endian length followed by nalu.
func (p *Packet) AppendNALU(nalu []byte) {
	var size [4]byte
	pio.PutU32BE(size[:], uint32(len(nalu)))
	p.Payload = append(p.Payload, size[:]...)
	p.Payload = append(p.Payload, nalu...)
}
