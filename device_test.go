package wsa

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

// scpiServer is a minimal scripted SCPI responder used to exercise
// Channel/Device without a real instrument: it maps exact command
// strings to single-line replies.
type scpiServer struct {
	conn     net.Conn
	replies  map[string]string
	fallback string
}

func newSCPIPipe(t *testing.T, replies map[string]string) (*Channel, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serverReady := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			serverReady <- c
		}
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-serverReady

	srv := &scpiServer{conn: server, replies: replies, fallback: "No error"}
	go srv.serve()

	cc := &controlConn{conn: client, timeout: 2 * time.Second}
	ch := newChannel(cc, nil)
	cleanup := func() {
		client.Close()
		server.Close()
		ln.Close()
	}
	return ch, cleanup
}

func (s *scpiServer) serve() {
	r := bufio.NewReader(s.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		reply, ok := s.replies[cmd]
		if !ok {
			if strings.HasSuffix(cmd, "?") {
				reply = ""
			} else if cmd == "SYST:ERR?" {
				reply = s.fallback
			} else {
				continue // non-query command with no SYST:ERR? entry: no reply expected here
			}
		}
		if _, err := s.conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

func TestChannelQuery(t *testing.T) {
	ch, cleanup := newSCPIPipe(t, map[string]string{
		"FREQ:CENT?": "2450000000",
	})
	defer cleanup()

	reply, err := ch.Query("FREQ:CENT?")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	v, err := ParseInt(reply.Text)
	if err != nil || v != 2450000000 {
		t.Fatalf("Query returned %v, %v", v, err)
	}
}

func TestChannelSendTriggerConflict(t *testing.T) {
	ch, cleanup := newSCPIPipe(t, map[string]string{
		"SYST:ERR?": `-221,"Settings conflict"`,
	})
	defer cleanup()

	_, err := ch.Send("SWEEP:LIST:START")
	if err == nil {
		t.Fatalf("expected a trigger-conflict warning")
	}
	if !IsWarning(err) {
		t.Fatalf("expected trigger conflict to be reported as a warning, got %v", err)
	}
}

func TestChannelSendHardError(t *testing.T) {
	ch, cleanup := newSCPIPipe(t, map[string]string{
		"SYST:ERR?": `-100,"Command error"`,
	})
	defer cleanup()

	_, err := ch.Send("BOGUS:CMD")
	if err == nil {
		t.Fatalf("expected SetFailed error")
	}
	if IsWarning(err) {
		t.Fatalf("did not expect a warning for a hard device error")
	}
	werr, ok := err.(*Error)
	if !ok || werr.Code != CodeSetFailed {
		t.Fatalf("expected SetFailed, got %v", err)
	}
}

func TestChannelSendNoError(t *testing.T) {
	ch, cleanup := newSCPIPipe(t, map[string]string{
		"SYST:ERR?": "No error",
	})
	defer cleanup()

	if _, err := ch.Send("FREQ:CENT 2450000000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestSweepTriggerSyncStateUsesAND covers the Open Question decision:
// the corrected getter ANDs the two string comparisons rather than
// reproducing the original's OR bug.
func TestSweepTriggerSyncStateUsesAND(t *testing.T) {
	ch, cleanup := newSCPIPipe(t, map[string]string{
		"SWEEP:LIST:TRIGGER:SYNC:TYPE?": "LEVEL",
		"SWEEP:LIST:TRIGGER:SYNC:ROLE?": "MASTER",
	})
	defer cleanup()

	dev := &Device{ctrl: ch, log: nil}
	ok, err := dev.SweepTriggerSyncState("LEVEL", "MASTER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match when both type and role agree")
	}

	ok, err = dev.SweepTriggerSyncState("LEVEL", "SLAVE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match when only type agrees (AND semantics)")
	}
}

func TestSetFreqValidatesRange(t *testing.T) {
	dev := &Device{log: nil}
	dev.Descriptor.MinTuneFreq = 50_000_000
	dev.Descriptor.MaxTuneFreq = 27_000_000_000

	err := dev.SetFreq(dev.Descriptor.MaxTuneFreq + 1)
	if err == nil {
		t.Fatalf("expected FreqOutOfBound")
	}
	werr, ok := err.(*Error)
	if !ok || werr.Code != CodeFreqOutOfBound {
		t.Fatalf("expected FreqOutOfBound, got %v", err)
	}
}
