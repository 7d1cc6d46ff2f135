// Package establish implements the HackVR establishment engine (§4.5):
// the raw `hackvr-hello` handshake and the HTTP/1.1 Upgrade path, on both
// the server and viewer sides. Every failure here is strict: the caller
// must close the transport and must never retry automatically (§4.5,
// §7's "Strict (establishment)" regime).
package establish

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/session"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("establish")

// MaxServerVersion is the highest protocol version this core speaks.
const MaxServerVersion = 1

// Error wraps any establishment failure. Every Error is fatal: the
// transport must be closed and the failure surfaced to the user (§7).
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("establish: %s", e.Reason)
}

// Result carries what the establishment handshake negotiated.
type Result struct {
	Version      int
	SessionToken []byte // nil if none was offered
	Origin       session.Origin
}

// ServerRaw drives the server side of the raw hackvr-hello handshake
// (§4.5(a)) over a line-oriented stream. It reads the client's
// hackvr-hello, writes the server's own, and returns the negotiated
// result. Any pre-hello bytes, a line other than hackvr-hello, a bad
// version, or an effective version below v1 is fatal.
func ServerRaw(r io.Reader, w io.Writer, scheme string) (*Result, error) {
	framer := wire.NewFramer(r)
	frame, err := framer.Next()
	if err != nil {
		if _, ok := err.(*wire.FramingError); ok {
			return nil, &Error{Reason: "framing violation before hackvr-hello"}
		}
		return nil, err
	}

	name, args := wire.SplitArgs(frame)
	if name != "hackvr-hello" {
		return nil, &Error{Reason: fmt.Sprintf("first line must be hackvr-hello, got %q", name)}
	}
	if len(args) < 2 || len(args) > 3 {
		return nil, &Error{Reason: "hackvr-hello requires <max-version> <uri> [<session-token>]"}
	}

	clientMax, err := wire.ParseVersion(args[0])
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("invalid version %q", args[0])}
	}

	rawURI := args[1]
	if strings.ContainsRune(rawURI, '#') {
		return nil, &Error{Reason: "hackvr-hello uri must not contain a fragment"}
	}
	origin, err := session.CanonicalizeRaw(rawURI)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	if origin.Scheme != scheme {
		return nil, &Error{Reason: fmt.Sprintf("uri scheme %q does not match this listener's scheme %q", origin.Scheme, scheme)}
	}

	effective := min(clientMax, MaxServerVersion)
	if effective < 1 {
		return nil, &Error{Reason: "effective version below v1"}
	}

	reply, err := wire.BuildFrame("hackvr-hello", wire.FormatVersion(MaxServerVersion))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(reply); err != nil {
		return nil, err
	}

	result := &Result{Version: effective, Origin: origin}
	if len(args) == 3 && args[2] != "" {
		token, err := wire.ParseSessionToken(args[2])
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("invalid session token: %v", err)}
		}
		result.SessionToken = token
	}
	log.Debug("raw establishment complete", "version", effective, "origin", origin.String())
	return result, nil
}

// ClientRaw drives the viewer side of the raw handshake: it sends
// hackvr-hello first, then reads the server's reply.
func ClientRaw(r io.Reader, w io.Writer, targetURI string, sessionToken []byte, clientMaxVersion int) (*Result, error) {
	if strings.ContainsRune(targetURI, '#') {
		return nil, &Error{Reason: "target uri must not contain a fragment; strip it into sessionToken locally"}
	}

	args := []string{wire.FormatVersion(clientMaxVersion), targetURI}
	if sessionToken != nil {
		args = append(args, wire.FormatSessionToken(sessionToken))
	}
	frame, err := wire.BuildFrame("hackvr-hello", args...)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(frame); err != nil {
		return nil, err
	}

	framer := wire.NewFramer(r)
	reply, err := framer.Next()
	if err != nil {
		return nil, err
	}
	name, rargs := wire.SplitArgs(reply)
	if name != "hackvr-hello" || len(rargs) != 1 {
		return nil, &Error{Reason: "server did not reply with hackvr-hello <version>"}
	}
	serverMax, err := wire.ParseVersion(rargs[0])
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("invalid server version %q", rargs[0])}
	}
	effective := min(clientMaxVersion, serverMax)
	if effective < 1 {
		return nil, &Error{Reason: "effective version below v1"}
	}

	origin, err := session.CanonicalizeRaw(targetURI)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return &Result{Version: effective, SessionToken: sessionToken, Origin: origin}, nil
}

// requiredUpgradeHeaders are matched case-insensitively per §4.5/§6.
const (
	headerConnection  = "Connection"
	headerUpgrade     = "Upgrade"
	headerHackVrVer   = "HackVr-Version"
	headerHackVrToken = "HackVr-Session"
)

// ServerHTTP drives the server side of the HTTP/1.1 Upgrade path
// (§4.5(b)). It reads one HTTP request off r, validates the upgrade
// headers, writes a 101 response to w, and returns the negotiated
// result. After this returns successfully, the HackVR command stream
// begins immediately on the same r/w pair — no further HTTP framing, and
// hackvr-hello must never appear.
func ServerHTTP(r io.Reader, w io.Writer, scheme string) (*Result, error) {
	br := bufio.NewReader(r)
	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("invalid HTTP request: %v", err)}
	}
	if req.Method != http.MethodGet {
		return nil, &Error{Reason: "upgrade request must be GET"}
	}

	if !headerContainsToken(req.Header, headerConnection, "upgrade") {
		return nil, &Error{Reason: "missing or mismatched Connection: upgrade"}
	}
	if !strings.EqualFold(req.Header.Get(headerUpgrade), "hackvr") {
		return nil, &Error{Reason: "missing or mismatched Upgrade: hackvr"}
	}
	if !strings.EqualFold(req.Header.Get(headerHackVrVer), "v1") {
		return nil, &Error{Reason: "HTTP establishment is pinned to v1"}
	}
	// Strict reading of §7's "extra bytes before the HackVR stream": a
	// client is assumed to wait for the 101 before writing stream bytes.
	// A client that pipelines its first frame behind the request would be
	// rejected here (and those bytes discarded with the local bufio
	// buffer), which is the deliberate strict-regime choice.
	if br.Buffered() > 0 {
		return nil, &Error{Reason: "extra bytes before the HackVR stream"}
	}

	origin, err := session.CanonicalizeHTTP(scheme, req.Host, req.RequestURI)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Connection: upgrade\r\n" +
		"Upgrade: hackvr\r\n" +
		"\r\n"
	if _, err := io.WriteString(w, resp); err != nil {
		return nil, err
	}

	result := &Result{Version: 1, Origin: origin}
	if tok := req.Header.Get(headerHackVrToken); tok != "" {
		token, err := wire.ParseSessionToken(tok)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("invalid HackVr-Session header: %v", err)}
		}
		result.SessionToken = token
	}
	log.Debug("http establishment complete", "origin", origin.String())
	return result, nil
}

// ClientHTTP drives the viewer side of the HTTP/1.1 Upgrade path: it
// writes the upgrade request, reads the response line and headers, and
// reports the negotiated result. Any 2xx status other than 101 is
// reported via Error with the response body attached as debug text
// (§4.5: "the viewer surfaces the response body as debug text").
func ClientHTTP(r io.Reader, w io.Writer, host, requestTarget string, sessionToken []byte) (*Result, error) {
	var reqBuilder strings.Builder
	fmt.Fprintf(&reqBuilder, "GET %s HTTP/1.1\r\n", requestTarget)
	fmt.Fprintf(&reqBuilder, "Host: %s\r\n", host)
	reqBuilder.WriteString("Connection: upgrade\r\n")
	reqBuilder.WriteString("Upgrade: hackvr\r\n")
	reqBuilder.WriteString("HackVr-Version: v1\r\n")
	if sessionToken != nil {
		fmt.Fprintf(&reqBuilder, "HackVr-Session: %s\r\n", wire.FormatSessionToken(sessionToken))
	}
	reqBuilder.WriteString("\r\n")

	if _, err := io.WriteString(w, reqBuilder.String()); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	statusLine, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	statusLine = strings.TrimRight(statusLine, "\r\n")
	fields := strings.SplitN(statusLine, " ", 3)
	if len(fields) < 2 {
		return nil, &Error{Reason: fmt.Sprintf("malformed HTTP status line %q", statusLine)}
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("malformed HTTP status code %q", fields[1])}
	}

	tp := textproto.NewReader(br)
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, err
	}
	header := http.Header(hdr)

	if code != http.StatusSwitchingProtocols {
		var body string
		if code >= 200 && code < 300 {
			b, _ := io.ReadAll(br)
			body = string(b)
		}
		return nil, &Error{Reason: fmt.Sprintf("upgrade failed: HTTP %d %s", code, body)}
	}

	if !headerContainsToken(header, headerConnection, "upgrade") {
		return nil, &Error{Reason: "101 response missing Connection: upgrade"}
	}
	if !strings.EqualFold(header.Get(headerUpgrade), "hackvr") {
		return nil, &Error{Reason: "101 response missing Upgrade: hackvr"}
	}

	origin, err := session.CanonicalizeHTTP(schemeFromHost(host), host, requestTarget)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return &Result{Version: 1, SessionToken: sessionToken, Origin: origin}, nil
}

// headerContainsToken reports whether header key's comma-separated value
// list contains token, matched case-insensitively (Connection: upgrade
// may appear alongside other tokens per RFC 7230).
func headerContainsToken(h http.Header, key, token string) bool {
	for _, v := range h.Values(key) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

func schemeFromHost(host string) string {
	// Caller only needs this to feed CanonicalizeHTTP's default-port
	// lookup; ClientHTTP callers that care about TLS pass an already
	// scheme-qualified canonicalization through a higher layer, so a
	// best-effort "http+hackvr" default is sufficient here.
	return "http+hackvr"
}
