package frame

import protoerr "github.com/arcs-rmm/relay/internal/errors"

// EncodeFrame produces the ordered list of wire packets for one encoded video frame.
// It fragments iff the single-packet encoding would exceed maxPacketSize; fragments share
// frame_no and timestamp, carry a constant fragment_total, and only fragment_index 0 carries
// the keyframe bit.
func EncodeFrame(frameNo uint32, timestamp uint64, keyframe, encrypted bool, payload []byte, maxPacketSize int) ([][]byte, error) {
	single := &Packet{
		FrameNo:   frameNo,
		Timestamp: timestamp,
		Keyframe:  keyframe,
		Encrypted: encrypted,
		Payload:   payload,
	}
	if baseHeaderSize+len(payload)+crcSize <= maxPacketSize {
		enc, err := Encode(single)
		if err != nil {
			return nil, err
		}
		return [][]byte{enc}, nil
	}

	fragHeaderSize := baseHeaderSize + fragmentFieldsSize
	chunkSize := maxPacketSize - fragHeaderSize - crcSize
	if chunkSize <= 0 {
		return nil, protoerr.NewFrameError("encode_frame.max_packet_size", errMaxPacketTooSmall)
	}

	total := (len(payload) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > 0xFFFF {
		return nil, protoerr.NewFrameError("encode_frame.fragment_total", errTooManyFragments)
	}

	packets := make([][]byte, 0, total)
	for idx := 0; idx < total; idx++ {
		start := idx * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		pkt := &Packet{
			FrameNo:       frameNo,
			Timestamp:     timestamp,
			Keyframe:      keyframe && idx == 0,
			Encrypted:     encrypted,
			Fragment:      true,
			FragmentIndex: uint16(idx),
			FragmentTotal: uint16(total),
			Payload:       payload[start:end],
		}
		enc, err := Encode(pkt)
		if err != nil {
			return nil, err
		}
		packets = append(packets, enc)
	}
	return packets, nil
}
