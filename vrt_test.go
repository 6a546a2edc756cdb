package wsa

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// pipePacketReader spins up an in-process TCP loopback so PacketReader
// can be exercised against a real dataConn without a live instrument.
func pipePacketReader(t *testing.T) (*PacketReader, net.Conn, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serverConnCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			serverConnCh <- c
		}
	}()
	clientConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	serverConn := <-serverConnCh

	dc := &dataConn{conn: clientConn, timeout: 2 * time.Second}
	reader := NewPacketReader(dc, nil)
	cleanup := func() {
		clientConn.Close()
		serverConn.Close()
		ln.Close()
	}
	return reader, serverConn, cleanup
}

// buildIFDataPacket constructs a synthetic IF-data packet on the wire
// with known samples_per_packet, TSI/TSF, and an IQ16 payload.
func buildIFDataPacket(packetCount byte, tsSeconds uint32, tsPicosec uint64, payload []byte, inverted bool) []byte {
	headerWords := ifDataHeaderWords
	trailerWords := ifDataTrailerWords
	totalWords := prefixWords + headerWords + len(payload)/4 + trailerWords

	buf := make([]byte, totalWords*4)
	word0 := uint32(0x4)<<28 | uint32(packetCount&0xF)<<16
	binary.BigEndian.PutUint32(buf[0:4], word0)
	binary.BigEndian.PutUint32(buf[4:8], uint32(totalWords))

	binary.BigEndian.PutUint32(buf[8:12], streamIDIFDataIQ16)
	binary.BigEndian.PutUint32(buf[12:16], 0)
	binary.BigEndian.PutUint32(buf[16:20], tsSeconds)
	binary.BigEndian.PutUint64(buf[20:28], tsPicosec)
	binary.BigEndian.PutUint32(buf[28:32], 0)
	binary.BigEndian.PutUint32(buf[32:36], 0)

	copy(buf[36:36+len(payload)], payload)

	var trailer uint32 = 1 << 31 // ValidData
	if inverted {
		trailer |= 1 << 27
	}
	binary.BigEndian.PutUint32(buf[len(buf)-4:], trailer)

	return buf
}

// TestVRTReaderIFDataRoundTrip covers invariant 6: building a
// synthetic IF-data packet with known samples_per_packet, TSI/TSF,
// and payload, then feeding it through the reader, yields the same
// header fields and payload bytes.
func TestVRTReaderIFDataRoundTrip(t *testing.T) {
	reader, server, cleanup := pipePacketReader(t)
	defer cleanup()

	payload := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04}
	wire := buildIFDataPacket(5, 1700000000, 123456789, payload, false)

	go func() {
		server.Write(wire)
	}()

	pkt, err := reader.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket error: %v", err)
	}
	if pkt.Header.PacketType != PacketTypeIFData {
		t.Fatalf("expected IF-data packet type")
	}
	if pkt.Header.PacketCount != 5 {
		t.Fatalf("expected packet count 5, got %d", pkt.Header.PacketCount)
	}
	if pkt.Header.TimestampSeconds != 1700000000 {
		t.Fatalf("expected TSI 1700000000, got %d", pkt.Header.TimestampSeconds)
	}
	if pkt.Header.TimestampPicosec != 123456789 {
		t.Fatalf("expected TSF 123456789, got %d", pkt.Header.TimestampPicosec)
	}
	if string(pkt.IFData) != string(payload) {
		t.Fatalf("payload mismatch: got %x want %x", pkt.IFData, payload)
	}
	if pkt.Trailer.SpectralInversion {
		t.Fatalf("expected spectral_inversion=false")
	}
}

// TestVRTReaderSpectralInversionTrailer ensures the inverted-packet
// variant decodes the trailer bit correctly (used by invariant 8).
func TestVRTReaderSpectralInversionTrailer(t *testing.T) {
	reader, server, cleanup := pipePacketReader(t)
	defer cleanup()

	payload := []byte{0x00, 0x01, 0x00, 0x02}
	wire := buildIFDataPacket(0, 0, 0, payload, true)
	go func() { server.Write(wire) }()

	pkt, err := reader.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket error: %v", err)
	}
	if !pkt.Trailer.SpectralInversion {
		t.Fatalf("expected spectral_inversion=true")
	}
}

// TestVRTReaderNotIQFrame ensures an unrecognized stream id surfaces
// NotIQFrame so the caller can abort and flush (§4.4).
func TestVRTReaderNotIQFrame(t *testing.T) {
	reader, server, cleanup := pipePacketReader(t)
	defer cleanup()

	buf := make([]byte, 4*4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(0x1)<<28)
	binary.BigEndian.PutUint32(buf[4:8], 4)
	binary.BigEndian.PutUint32(buf[8:12], 0xDEADBEEF)
	binary.BigEndian.PutUint32(buf[12:16], 0)

	go func() { server.Write(buf) }()

	_, err := reader.ReadPacket()
	if err == nil {
		t.Fatalf("expected NotIQFrame error")
	}
	werr, ok := err.(*Error)
	if !ok || werr.Code != CodeNotIQFrame {
		t.Fatalf("expected NotIQFrame error, got %v", err)
	}
}

func TestCheckPacketCountResyncsOnMismatch(t *testing.T) {
	var expected uint8 = 3
	observed := uint8(7)
	log := NewLogger(DebugWarn)
	CheckPacketCount(log, &expected, &observed)
	if expected != 8 {
		t.Fatalf("expected counter to resync to observed+1=8, got %d", expected)
	}
}

func TestFixedPointToFloat(t *testing.T) {
	cases := []struct {
		fixed int32
		want  float64
	}{
		{0, 0},
		{65536, 1.0},
		{-65536, -1.0},
		{32768, 0.5},
	}
	for _, tc := range cases {
		got := fixedPointToFloat(tc.fixed)
		if got != tc.want {
			t.Fatalf("fixedPointToFloat(%d) = %v, want %v", tc.fixed, got, tc.want)
		}
	}
}
