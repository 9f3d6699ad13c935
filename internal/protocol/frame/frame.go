// Package frame implements the binary video-packet wire format: a fixed-layout
// header (magic, version, type, frame number, timestamp, flags, length) followed
// by payload bytes and a trailing CRC32 checksum. One frame codec packet carries
// either a complete encoded video frame or one fragment of a larger one.
//
// Parsing is allocation-light and fixed-layout, mirroring the chunk header
// parser this package was adapted from: no dynamic per-field allocation, a
// single scratch read per packet, exhaustive validation before the payload is
// ever handed to a caller.
package frame

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/arcs-rmm/relay/internal/bufpool"
	protoerr "github.com/arcs-rmm/relay/internal/errors"
)

// Magic is the literal 4-byte packet preamble, ASCII "ARCS".
var Magic = [4]byte{0x41, 0x52, 0x43, 0x53}

const (
	// Version is the only wire version this codec speaks.
	Version uint8 = 0x01

	// TypeVideoFrame is the only currently defined packet type.
	TypeVideoFrame uint8 = 0x02
)

// Flag bits within the single flags byte.
const (
	FlagKeyframe  uint8 = 1 << 0
	FlagEncrypted uint8 = 1 << 1
	FlagFragment  uint8 = 1 << 2
)

const (
	// baseHeaderSize is magic(4)+version(1)+type(1)+frame_no(4)+timestamp(8)+flags(1)+payload_len(4).
	baseHeaderSize = 4 + 1 + 1 + 4 + 8 + 1 + 4
	// fragmentFieldsSize is fragment_index(2)+fragment_total(2), present only when FlagFragment is set.
	fragmentFieldsSize = 2 + 2
	// crcSize is the trailing big-endian CRC32 (IEEE).
	crcSize = 4
)

// Packet is one decoded wire packet: a complete frame or a single fragment.
type Packet struct {
	FrameNo        uint32
	Timestamp      uint64 // presentation time, microseconds
	Keyframe       bool
	Encrypted      bool
	Fragment       bool
	FragmentIndex  uint16
	FragmentTotal  uint16
	Payload        []byte
}

// headerSize returns the header size (before payload) for this packet, depending on whether
// the fragment fields are present.
func (p *Packet) headerSize() int {
	if p.Fragment {
		return baseHeaderSize + fragmentFieldsSize
	}
	return baseHeaderSize
}

func (p *Packet) flags() uint8 {
	var f uint8
	if p.Keyframe {
		f |= FlagKeyframe
	}
	if p.Encrypted {
		f |= FlagEncrypted
	}
	if p.Fragment {
		f |= FlagFragment
	}
	return f
}

// Encode serializes a single packet: header, payload, and trailing CRC32 over everything
// preceding it. Callers needing fragmentation should use EncodeFrame instead; Encode emits
// exactly one wire packet for the given Packet fields.
func Encode(p *Packet) ([]byte, error) {
	if p == nil {
		return nil, protoerr.NewFrameError("encode", nil)
	}
	total := p.headerSize() + len(p.Payload) + crcSize
	buf := make([]byte, total)

	copy(buf[0:4], Magic[:])
	buf[4] = Version
	buf[5] = TypeVideoFrame
	binary.BigEndian.PutUint32(buf[6:10], p.FrameNo)
	binary.BigEndian.PutUint64(buf[10:18], p.Timestamp)
	buf[18] = p.flags()
	binary.BigEndian.PutUint32(buf[19:23], uint32(len(p.Payload)))

	off := baseHeaderSize
	if p.Fragment {
		binary.BigEndian.PutUint16(buf[off:off+2], p.FragmentIndex)
		binary.BigEndian.PutUint16(buf[off+2:off+4], p.FragmentTotal)
		off += fragmentFieldsSize
	}
	copy(buf[off:off+len(p.Payload)], p.Payload)
	off += len(p.Payload)

	sum := crc32.ChecksumIEEE(buf[:off])
	binary.BigEndian.PutUint32(buf[off:off+crcSize], sum)
	return buf, nil
}

// Decode parses and validates a single wire packet. Any inconsistency in magic, version, type,
// declared length, or CRC yields an error; callers MUST treat a decode error as "drop and count",
// never as a reason to close the connection (per the relay's backpressure/drop-by-design policy).
func Decode(b []byte) (*Packet, error) {
	if len(b) < baseHeaderSize+crcSize {
		return nil, protoerr.NewFrameError("decode.length", errShortPacket)
	}
	if b[0] != Magic[0] || b[1] != Magic[1] || b[2] != Magic[2] || b[3] != Magic[3] {
		return nil, protoerr.NewFrameError("decode.magic", errBadMagic)
	}
	if b[4] != Version {
		return nil, protoerr.NewFrameError("decode.version", errBadVersion)
	}
	if b[5] != TypeVideoFrame {
		return nil, protoerr.NewFrameError("decode.type", errBadType)
	}

	frameNo := binary.BigEndian.Uint32(b[6:10])
	ts := binary.BigEndian.Uint64(b[10:18])
	flags := b[18]
	payloadLen := binary.BigEndian.Uint32(b[19:23])

	p := &Packet{
		FrameNo:   frameNo,
		Timestamp: ts,
		Keyframe:  flags&FlagKeyframe != 0,
		Encrypted: flags&FlagEncrypted != 0,
		Fragment:  flags&FlagFragment != 0,
	}

	off := baseHeaderSize
	if p.Fragment {
		if len(b) < off+fragmentFieldsSize {
			return nil, protoerr.NewFrameError("decode.fragment_fields", errShortPacket)
		}
		p.FragmentIndex = binary.BigEndian.Uint16(b[off : off+2])
		p.FragmentTotal = binary.BigEndian.Uint16(b[off+2 : off+4])
		off += fragmentFieldsSize
	}

	wantLen := off + int(payloadLen) + crcSize
	if wantLen < 0 || len(b) != wantLen {
		return nil, protoerr.NewFrameError("decode.declared_length", errLengthMismatch)
	}

	payloadEnd := off + int(payloadLen)
	gotCRC := binary.BigEndian.Uint32(b[payloadEnd : payloadEnd+crcSize])
	wantCRC := crc32.ChecksumIEEE(b[:payloadEnd])
	if gotCRC != wantCRC {
		return nil, protoerr.NewFrameError("decode.crc", errCRCMismatch)
	}

	p.Payload = bufpool.Get(int(payloadLen))
	copy(p.Payload, b[off:payloadEnd])
	return p, nil
}

// Release returns p.Payload to the shared buffer pool and clears it. Callers that do not
// retain Payload past their use of the decoded Packet should call Release once they are
// done with it; callers that hand Payload off elsewhere (e.g. the reassembler) must not.
func (p *Packet) Release() {
	if p == nil {
		return
	}
	bufpool.Put(p.Payload)
	p.Payload = nil
}
