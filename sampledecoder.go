package wsa

// Full-scale divisors used by DSP normalization (§4.5/§4.6):
// 14-bit-effective streams (the IQ16/16 and I16 families, which both
// carry a 14-bit sample left-justified in 16 bits) normalize against
// 8192 (2^13); the 32-bit stream is treated as 24-bit effective and
// normalizes against 8388608 (2^23).
const (
	FullScale14Bit = 8192
	FullScale24Bit = 8388608
)

// DecodedSamples holds the two parallel sample buffers produced by
// decoding one packet's payload. Q is nil for real (I-only) streams.
type DecodedSamples struct {
	I []int32
	Q []int32
}

// DecodeSamples converts a payload byte slice into signed samples per
// the stream id's wire format (§4.5).
func DecodeSamples(streamID uint32, payload []byte) (DecodedSamples, error) {
	switch streamID {
	case streamIDIFDataIQ16:
		return decodeIQ16(payload)
	case streamIDIFDataI16:
		return decodeI16(payload)
	case streamIDIFDataI32:
		return decodeI32(payload)
	default:
		return DecodedSamples{}, newErr(KindProtocol, CodeInvSampleSize, "DecodeSamples", "unrecognized stream id for sample decode")
	}
}

// decodeIQ16 splits interleaved "I1hi I1lo Q1hi Q1lo ..." bytes into
// int16 I/Q streams.
func decodeIQ16(payload []byte) (DecodedSamples, error) {
	if len(payload)%4 != 0 {
		return DecodedSamples{}, newErr(KindProtocol, CodeInvSampleSize, "decodeIQ16", "payload length not a multiple of 4")
	}
	n := len(payload) / 4
	out := DecodedSamples{I: make([]int32, n), Q: make([]int32, n)}
	for i := 0; i < n; i++ {
		base := i * 4
		out.I[i] = int32(int16(uint16(payload[base])<<8 | uint16(payload[base+1])))
		out.Q[i] = int32(int16(uint16(payload[base+2])<<8 | uint16(payload[base+3])))
	}
	return out, nil
}

// decodeI16 decodes 14-bit signed samples left-justified in 16 bits,
// top two bits zero. Sign-extends by testing bit 13 and OR-ing 0xC0
// into the top byte when set, so the output is a proper signed 16-bit
// value (a compensation for a device firmware quirk, per §4.5).
func decodeI16(payload []byte) (DecodedSamples, error) {
	if len(payload)%2 != 0 {
		return DecodedSamples{}, newErr(KindProtocol, CodeInvSampleSize, "decodeI16", "payload length not a multiple of 2")
	}
	n := len(payload) / 2
	out := DecodedSamples{I: make([]int32, n)}
	for i := 0; i < n; i++ {
		hi := payload[i*2]
		lo := payload[i*2+1]
		if hi&0x20 != 0 { // bit 13 of the 16-bit word
			hi |= 0xC0
		}
		out.I[i] = int32(int16(uint16(hi)<<8 | uint16(lo)))
	}
	return out, nil
}

// decodeI32 decodes packed 32-bit big-endian signed samples.
func decodeI32(payload []byte) (DecodedSamples, error) {
	if len(payload)%4 != 0 {
		return DecodedSamples{}, newErr(KindProtocol, CodeInvSampleSize, "decodeI32", "payload length not a multiple of 4")
	}
	n := len(payload) / 4
	out := DecodedSamples{I: make([]int32, n)}
	for i := 0; i < n; i++ {
		base := i * 4
		v := uint32(payload[base])<<24 | uint32(payload[base+1])<<16 | uint32(payload[base+2])<<8 | uint32(payload[base+3])
		out.I[i] = int32(v)
	}
	return out, nil
}

// FullScaleFor returns the normalization divisor for a given stream id.
func FullScaleFor(streamID uint32) float64 {
	if streamID == streamIDIFDataI32 {
		return FullScale24Bit
	}
	return FullScale14Bit
}
