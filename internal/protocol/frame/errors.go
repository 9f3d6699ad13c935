package frame

import "errors"

var (
	errShortPacket    = errors.New("packet shorter than minimum header+crc size")
	errBadMagic       = errors.New("bad magic preamble")
	errBadVersion     = errors.New("unsupported version")
	errBadType        = errors.New("unsupported packet type")
	errLengthMismatch = errors.New("declared payload length inconsistent with packet size")
	errCRCMismatch    = errors.New("crc32 mismatch")

	errMaxPacketTooSmall = errors.New("max_packet_size too small to hold one fragment header plus one byte of payload")
	errTooManyFragments  = errors.New("payload requires more than 65535 fragments")
)
