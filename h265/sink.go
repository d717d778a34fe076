package h265

import "github.com/Eyevinn/hevc-rtmp-tools/flv"

// FrameSink takes ownership of demuxed frames.
type FrameSink interface {
	AcceptFrame(f *Frame)
}

// PacketSink takes ownership of muxed packets.
type PacketSink interface {
	AcceptPacket(p *flv.Packet)
}

type FrameSinkFunc func(f *Frame)

func (fn FrameSinkFunc) AcceptFrame(f *Frame) { fn(f) }

type PacketSinkFunc func(p *flv.Packet)

func (fn PacketSinkFunc) AcceptPacket(p *flv.Packet) { fn(p) }

// FrameCollector keeps every frame it is given.
type FrameCollector struct {
	Frames []*Frame
}

func (c *FrameCollector) AcceptFrame(f *Frame) { c.Frames = append(c.Frames, f) }

// PacketCollector keeps every packet it is given.
type PacketCollector struct {
	Packets []*flv.Packet
}

func (c *PacketCollector) AcceptPacket(p *flv.Packet) { c.Packets = append(c.Packets, p) }
