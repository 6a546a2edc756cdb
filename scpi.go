package wsa

import (
	"bufio"
	"strconv"
	"strings"
)

// Reply is the result of a query: Status carries a transport-level
// error code (negative on failure, zero on success), Text is the
// newline-stripped response body.
type Reply struct {
	Status int
	Text   string
}

// Channel is the SCPI command/response channel over the control
// socket. It mirrors rotctl.go's send/read-until-terminator shape:
// one command at a time, newline-terminated, no pipelining.
type Channel struct {
	conn   *controlConn
	reader *bufio.Reader
	log    *Logger
}

func newChannel(conn *controlConn, log *Logger) *Channel {
	return &Channel{conn: conn, reader: bufio.NewReaderSize(readerAdapter{conn}, 4096), log: log}
}

// readerAdapter lets bufio.Reader drive the one-shot control recv.
type readerAdapter struct{ c *controlConn }

func (r readerAdapter) Read(p []byte) (int, error) {
	return r.c.RecvOneShot(p)
}

// readLine reads up to and including the next '\n', with the
// terminator stripped.
func (ch *Channel) readLine() (string, error) {
	line, err := ch.reader.ReadString('\n')
	if err != nil {
		return "", wrapErr(KindTransport, CodeSocketError, "scpi", "failed to read reply", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Send issues a non-query command. If cmd does not contain '?', the
// channel automatically follows up with SYST:ERR? and, on a non-empty
// error reply, returns SetFailed — except for the special-cased
// "-221" (trigger conflict), which is surfaced as a warning rather
// than a hard error.
func (ch *Channel) Send(cmd string) (int, error) {
	ch.log.Logf(DebugConfig, "send: %s", cmd)
	n, err := ch.conn.Send([]byte(cmd + "\n"))
	if err != nil {
		return n, wrapErr(KindProtocol, CodeCmdSendFailed, "scpi.Send", "command send failed", err)
	}
	if strings.Contains(cmd, "?") {
		return n, nil
	}
	errLine, qerr := ch.Query("SYST:ERR?")
	if qerr != nil {
		return n, qerr
	}
	if errLine.Status < 0 {
		return n, wrapErr(KindTransport, CodeSocketError, "scpi.Send", "SYST:ERR? failed", nil)
	}
	code, msg := splitSCPIError(errLine.Text)
	if code == 0 {
		return n, nil
	}
	if code == -221 {
		ch.log.Logf(DebugWarn, "trigger conflict after %q: %s", cmd, msg)
		return n, newErr(KindWarning, CodeTriggerConflict, "scpi.Send", "trigger conflict: "+msg)
	}
	return n, newErr(KindProtocol, CodeSetFailed, "scpi.Send", "device reported error "+strconv.Itoa(code)+": "+msg)
}

// Query issues cmd and returns its single-line reply.
func (ch *Channel) Query(cmd string) (Reply, error) {
	ch.log.Logf(DebugConfig, "query: %s", cmd)
	if _, err := ch.conn.Send([]byte(cmd + "\n")); err != nil {
		return Reply{Status: -1}, wrapErr(KindProtocol, CodeCmdSendFailed, "scpi.Query", "query send failed", err)
	}
	line, err := ch.readLine()
	if err != nil {
		return Reply{Status: -1}, err
	}
	if line == "" {
		return Reply{Status: -1}, newErr(KindTransport, CodeQueryNoResponse, "scpi.Query", "empty reply to "+cmd)
	}
	return Reply{Status: 0, Text: line}, nil
}

// splitSCPIError parses a "No error"/empty reply as (0, "") and a
// "<code>,<message>" reply as (code, message). A leading '-' on the
// code indicates a device error.
func splitSCPIError(text string) (int, string) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "No error") {
		return 0, ""
	}
	parts := strings.SplitN(text, ",", 2)
	code, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, ""
	}
	msg := ""
	if len(parts) == 2 {
		msg = strings.TrimSpace(strings.Trim(parts[1], `"`))
	}
	return code, msg
}

// ParseInt parses a SCPI numeric reply as a signed integer. Malformed
// replies surface as RespUnknown.
func ParseInt(text string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, newErr(KindProtocol, CodeRespUnknown, "scpi.ParseInt", "malformed integer reply: "+text)
	}
	return v, nil
}

// ParseFloat parses a SCPI numeric reply as a double.
func ParseFloat(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, newErr(KindProtocol, CodeRespUnknown, "scpi.ParseFloat", "malformed float reply: "+text)
	}
	return v, nil
}

// checkRangeInt downgrades an out-of-range parsed value to RespUnknown,
// matching every device getter's cross-check against the descriptor's
// declared bounds.
func checkRangeInt(v, lo, hi int64, op string) (int64, error) {
	if v < lo || v > hi {
		return 0, newErr(KindProtocol, CodeRespUnknown, op, "value out of descriptor range")
	}
	return v, nil
}
