package flv

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/nareix/joy4/utils/bits/pio"
)

const (
	fileHeaderSize = 9
	tagHeaderSize  = 11
	prevTagSize    = 4

	flagHasAudio = 0x04
	flagHasVideo = 0x01
)

var ErrNotFLV = errors.New("flv: bad file signature")

// Reader reads tags from an FLV file. Only tag framing is interpreted; tag
// bodies are returned as packets.
type Reader struct {
	r          *bufio.Reader
	HasAudio   bool
	HasVideo   bool
	readHeader bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, pio.RecommendBufioSize)}
}

func (fr *Reader) ReadHeader() error {
	if fr.readHeader {
		return nil
	}
	var hdr [fileHeaderSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return fmt.Errorf("reading flv header %w", err)
	}
	if hdr[0] != 'F' || hdr[1] != 'L' || hdr[2] != 'V' {
		return ErrNotFLV
	}
	fr.HasAudio = hdr[4]&flagHasAudio != 0
	fr.HasVideo = hdr[4]&flagHasVideo != 0
	dataOffset := pio.U32BE(hdr[5:9])
	if dataOffset < fileHeaderSize {
		return fmt.Errorf("%w: data offset %d", ErrNotFLV, dataOffset)
	}
	skip := int64(dataOffset-fileHeaderSize) + prevTagSize
	if _, err := io.CopyN(io.Discard, fr.r, skip); err != nil {
		return fmt.Errorf("skipping flv header %w", err)
	}
	fr.readHeader = true
	return nil
}

// ReadPacket returns the next tag. io.EOF is returned at a clean end of file.
func (fr *Reader) ReadPacket() (*Packet, error) {
	if err := fr.ReadHeader(); err != nil {
		return nil, err
	}
	var hdr [tagHeaderSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading tag header %w", err)
	}
	dataSize := pio.U24BE(hdr[1:4])
	pkt := &Packet{
		TypeID:    hdr[0] & 0x1f,
		Timestamp: pio.U24BE(hdr[4:7]) | uint32(hdr[7])<<24,
		StreamID:  pio.U24BE(hdr[8:11]),
		Payload:   make([]byte, dataSize),
	}
	if pkt.TypeID == TypeVideo {
		pkt.ChunkID = ChunkVideo
	}
	if _, err := io.ReadFull(fr.r, pkt.Payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading tag body %w", err)
	}
	var tail [prevTagSize]byte
	if _, err := io.ReadFull(fr.r, tail[:]); err != nil {
		// Some writers omit the last previous tag size.
		if err == io.EOF {
			return pkt, nil
		}
		return nil, fmt.Errorf("reading previous tag size %w", err)
	}
	return pkt, nil
}

// Writer writes packets as FLV tags.
type Writer struct {
	w           *bufio.Writer
	flags       byte
	wroteHeader bool
}

func NewWriter(w io.Writer, hasAudio, hasVideo bool) *Writer {
	fw := &Writer{w: bufio.NewWriterSize(w, pio.RecommendBufioSize)}
	if hasAudio {
		fw.flags |= flagHasAudio
	}
	if hasVideo {
		fw.flags |= flagHasVideo
	}
	return fw
}

func (fw *Writer) WriteHeader() error {
	if fw.wroteHeader {
		return nil
	}
	var hdr [fileHeaderSize + prevTagSize]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = 'F', 'L', 'V', 1
	hdr[4] = fw.flags
	pio.PutU32BE(hdr[5:9], fileHeaderSize)
	if _, err := fw.w.Write(hdr[:]); err != nil {
		return err
	}
	fw.wroteHeader = true
	return nil
}

func (fw *Writer) WritePacket(pkt *Packet) error {
	if err := fw.WriteHeader(); err != nil {
		return err
	}
	if len(pkt.Payload) > 0xffffff {
		return fmt.Errorf("flv: tag body of %d bytes does not fit", len(pkt.Payload))
	}
	var hdr [tagHeaderSize]byte
	typeID := pkt.TypeID
	if typeID == 0 {
		typeID = TypeVideo
	}
	hdr[0] = typeID
	pio.PutU24BE(hdr[1:4], uint32(len(pkt.Payload)))
	pio.PutU24BE(hdr[4:7], pkt.Timestamp&0xffffff)
	hdr[7] = byte(pkt.Timestamp >> 24)
	if _, err := fw.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(pkt.Payload); err != nil {
		return err
	}
	var tail [prevTagSize]byte
	pio.PutU32BE(tail[:], uint32(tagHeaderSize+len(pkt.Payload)))
	_, err := fw.w.Write(tail[:])
	return err
}

func (fw *Writer) Flush() error {
	if err := fw.WriteHeader(); err != nil {
		return err
	}
	return fw.w.Flush()
}
