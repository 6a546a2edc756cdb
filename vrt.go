package wsa

import (
	"encoding/binary"
)

// Stream ids, from the wire contract (§6): the high nibble of the
// first header byte encodes packet type, and the third/fourth 32-bit
// words carry one of these stream-id constants.
const (
	streamIDReceiverContext  uint32 = 0x90000001
	streamIDDigitizerContext uint32 = 0x90000002
	streamIDExtension        uint32 = 0x90000003
	streamIDIFDataIQ16       uint32 = 0x90000004 // I16/Q16 interleaved
	streamIDIFDataI16        uint32 = 0x90000005 // I-only, 14-bit in 16
	streamIDIFDataI32        uint32 = 0x90000006 // I-only, 32-bit
)

// PacketType is the coarse classification taken from the high nibble
// of the first header byte.
type PacketType int

const (
	PacketTypeContext PacketType = iota
	PacketTypeIFData
)

// ifDataHeaderWords / ifDataTrailerWords are the fixed sizes (in
// 32-bit words) of an IF-data packet's header and trailer (§6:
// "IF-data packets have a fixed header size of 7 32-bit words and a
// trailer of 1 32-bit word").
const (
	ifDataHeaderWords  = 7
	ifDataTrailerWords = 1
	prefixWords        = 2
)

// Header is the typed VRT packet header common to every packet kind.
type Header struct {
	PacketType       PacketType
	StreamID         uint32
	PacketCount      uint8 // 4-bit wrapping counter
	SamplesPerPacket uint32
	TimestampSeconds uint32 // TSI = UTC
	TimestampPicosec uint64 // TSF = picoseconds
}

// Trailer carries the per-packet status flags of an IF-data packet.
type Trailer struct {
	ValidData         bool
	RefLock           bool
	OverRange         bool
	SampleLoss        bool
	SpectralInversion bool
}

// Indicator bits for context packets, walked in the fixed canonical
// order the wire contract specifies (§6: "fields appear in a fixed
// canonical order").
const (
	indRefPoint     = 1 << 0
	indRFFreq       = 1 << 1
	indRFGain       = 1 << 2
	indTemperature  = 1 << 3
	indBandwidth    = 1 << 0
	indRFFreqOffset = 1 << 1
	indRefLevel     = 1 << 2
)

// ReceiverContext holds the fields of a receiver-context packet that
// were actually present (gated by the indicator bitmask).
type ReceiverContext struct {
	HasRefPoint bool
	RefPointID  uint32
	HasRFFreq   bool
	RFFreqHz    uint64
	HasRFGain   bool
	RFGainDB    float64
	HasIFGain   bool
	IFGainDB    float64
}

// DigitizerContext holds the fields of a digitizer-context packet
// that were actually present.
type DigitizerContext struct {
	HasBandwidth      bool
	BandwidthHz       uint64
	HasRFFreqOffset   bool
	RFFreqOffsetHz    int64
	HasReferenceLevel bool
	ReferenceLevelDBm float64
}

// ExtensionPacket carries a custom sweep-sequence id echoed back by
// the instrument (reserved for sweep-id correlation; unused by the
// capture loop itself per spec §4.9).
type ExtensionPacket struct {
	SweepID uint32
}

// Packet is the union of everything PacketReader.ReadPacket can
// produce for one wire packet. Only the field matching Header matters.
type Packet struct {
	Header    Header
	Trailer   Trailer
	IFData    []byte // raw sample payload, IF-data packets only
	Receiver  ReceiverContext
	Digitizer DigitizerContext
	Extension ExtensionPacket
}

// PacketReader reads one VRT packet at a time from the data socket.
type PacketReader struct {
	conn *dataConn
	log  *Logger
}

func NewPacketReader(conn *dataConn, log *Logger) *PacketReader {
	return &PacketReader{conn: conn, log: log}
}

// ReadPacket reads the two-word prefix to determine packet type,
// packet count and size, then the remainder of the packet, whose first
// word is the stream id, and decodes it into a typed Packet. Returns NotIQFrame if the stream id is not one of the three
// recognized families (§4.4): in that case the caller is expected to
// abort capture and flush.
func (r *PacketReader) ReadPacket() (Packet, error) {
	var prefix [prefixWords * 4]byte
	if err := r.conn.RecvExact(prefix[:]); err != nil {
		return Packet{}, err
	}

	word0 := binary.BigEndian.Uint32(prefix[0:4])
	packetSizeWords := binary.BigEndian.Uint32(prefix[4:8]) & 0xFFFF

	typeNibble := byte(word0>>28) & 0xF
	packetCount := byte(word0>>16) & 0xF

	var pktType PacketType
	switch typeNibble {
	case 0x4:
		pktType = PacketTypeIFData
	case 0x1:
		pktType = PacketTypeContext
	default:
		return Packet{}, ErrNotIQFrame
	}

	payloadBytes := int64(packetSizeWords-prefixWords) * 4
	if payloadBytes < 0 {
		return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "ReadPacket", "negative payload size")
	}
	rest := make([]byte, payloadBytes)
	if err := r.conn.RecvExact(rest); err != nil {
		return Packet{}, err
	}

	if len(rest) < 8 {
		return Packet{}, ErrNotIQFrame
	}
	streamID := binary.BigEndian.Uint32(rest[0:4])

	hdr := Header{PacketType: pktType, StreamID: streamID, PacketCount: packetCount}

	switch streamID {
	case streamIDIFDataIQ16, streamIDIFDataI16, streamIDIFDataI32:
		return r.decodeIFData(hdr, rest)
	case streamIDReceiverContext:
		return r.decodeReceiverContext(hdr, rest)
	case streamIDDigitizerContext:
		return r.decodeDigitizerContext(hdr, rest)
	case streamIDExtension:
		return r.decodeExtension(hdr, rest)
	default:
		return Packet{}, ErrNotIQFrame
	}
}

func (r *PacketReader) decodeIFData(hdr Header, rest []byte) (Packet, error) {
	// rest layout: streamID(1w) + reserved(1w) + TSI(1w) + TSF(2w) +
	// reserved(1w) + reserved(1w) = 7 words header, then payload, then
	// a 1-word trailer.
	if len(rest) < ifDataHeaderWords*4+ifDataTrailerWords*4 {
		return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeIFData", "packet too short for fixed header/trailer")
	}
	hdr.TimestampSeconds = binary.BigEndian.Uint32(rest[8:12])
	hdr.TimestampPicosec = binary.BigEndian.Uint64(rest[12:20])

	payload := rest[ifDataHeaderWords*4 : len(rest)-ifDataTrailerWords*4]
	trailerWord := binary.BigEndian.Uint32(rest[len(rest)-4:])

	hdr.SamplesPerPacket = sppFromPayload(hdr.StreamID, len(payload))

	trailer := Trailer{
		ValidData:         trailerWord&(1<<31) != 0,
		RefLock:           trailerWord&(1<<30) != 0,
		OverRange:         trailerWord&(1<<29) != 0,
		SampleLoss:        trailerWord&(1<<28) != 0,
		SpectralInversion: trailerWord&(1<<27) != 0,
	}

	return Packet{Header: hdr, Trailer: trailer, IFData: payload}, nil
}

// sppFromPayload derives samples_per_packet from the payload byte
// count given the per-stream-id sample width (§4.4).
func sppFromPayload(streamID uint32, payloadBytes int) uint32 {
	switch streamID {
	case streamIDIFDataIQ16:
		return uint32(payloadBytes / 4) // I16+Q16 per sample
	case streamIDIFDataI16:
		return uint32(payloadBytes / 2)
	case streamIDIFDataI32:
		return uint32(payloadBytes / 4)
	default:
		return 0
	}
}

func (r *PacketReader) decodeReceiverContext(hdr Header, rest []byte) (Packet, error) {
	if len(rest) < 8 {
		return Packet{}, ErrNotIQFrame
	}
	indicator := binary.BigEndian.Uint32(rest[4:8])
	off := 8
	var ctx ReceiverContext

	if indicator&indRefPoint != 0 {
		if off+4 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeReceiverContext", "truncated ref point field")
		}
		ctx.HasRefPoint = true
		ctx.RefPointID = binary.BigEndian.Uint32(rest[off : off+4])
		off += 4
	}
	if indicator&indRFFreq != 0 {
		if off+8 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeReceiverContext", "truncated freq field")
		}
		ctx.HasRFFreq = true
		ctx.RFFreqHz = binary.BigEndian.Uint64(rest[off : off+8])
		off += 8
	}
	if indicator&indRFGain != 0 {
		if off+8 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeReceiverContext", "truncated gain field")
		}
		ctx.HasRFGain = true
		ctx.RFGainDB = fixedPointToFloat(int32(binary.BigEndian.Uint32(rest[off : off+4])))
		ctx.HasIFGain = true
		ctx.IFGainDB = fixedPointToFloat(int32(binary.BigEndian.Uint32(rest[off+4 : off+8])))
		off += 8
	}
	if indicator&indTemperature != 0 {
		off += 4
	}
	return Packet{Header: hdr, Receiver: ctx}, nil
}

func (r *PacketReader) decodeDigitizerContext(hdr Header, rest []byte) (Packet, error) {
	if len(rest) < 8 {
		return Packet{}, ErrNotIQFrame
	}
	indicator := binary.BigEndian.Uint32(rest[4:8])
	off := 8
	var ctx DigitizerContext

	if indicator&indBandwidth != 0 {
		if off+8 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeDigitizerContext", "truncated bandwidth field")
		}
		ctx.HasBandwidth = true
		ctx.BandwidthHz = binary.BigEndian.Uint64(rest[off : off+8])
		off += 8
	}
	if indicator&indRFFreqOffset != 0 {
		if off+8 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeDigitizerContext", "truncated freq offset field")
		}
		ctx.HasRFFreqOffset = true
		ctx.RFFreqOffsetHz = int64(binary.BigEndian.Uint64(rest[off : off+8]))
		off += 8
	}
	if indicator&indRefLevel != 0 {
		if off+4 > len(rest) {
			return Packet{}, newErr(KindProtocol, CodeNotIQFrame, "decodeDigitizerContext", "truncated reference level field")
		}
		ctx.HasReferenceLevel = true
		ctx.ReferenceLevelDBm = fixedPointToFloat(int32(binary.BigEndian.Uint32(rest[off : off+4])))
		off += 4
	}
	return Packet{Header: hdr, Digitizer: ctx}, nil
}

func (r *PacketReader) decodeExtension(hdr Header, rest []byte) (Packet, error) {
	if len(rest) < 12 {
		return Packet{}, ErrNotIQFrame
	}
	id := binary.BigEndian.Uint32(rest[8:12])
	return Packet{Header: hdr, Extension: ExtensionPacket{SweepID: id}}, nil
}

// fixedPointToFloat converts a Q16.16 signed fixed-point value (the
// wire's convention for gain/reference-level fields) to a float64.
func fixedPointToFloat(fixed int32) float64 {
	return float64(fixed) / 65536.0
}

// CheckPacketCount compares an observed 4-bit wrapping counter
// against the expected value for this stream class. A mismatch is
// never fatal (§4.4/§9): it is logged and expected is resynced to
// observed. Either way expected then advances to the next counter
// value (mod 16).
func CheckPacketCount(log *Logger, expected, observed *uint8) {
	if *expected != *observed {
		log.Logf(DebugWarn, "packet count mismatch: expected %d observed %d, resyncing", *expected, *observed)
		*expected = *observed
	}
	*expected = (*expected + 1) & 0xF
}
