// Package client implements the HackVR viewer's outbound command surface
// (§4.3's C→S commands): the small set of frames a viewer emits in
// response to user action — chat, tap-object, tell-object, send-input,
// raycast, resume-session, and the auth/session replies. It mirrors the
// shape of the teacher's WebSocket client command assembly, minus its
// reconnect loop: spec.md's Non-goals exclude automatic reconnection, so
// a dropped connection here is simply reported to the caller.
package client

import (
	"fmt"
	"io"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/wire"
)

var log = logging.L("client")

// Client writes outbound HackVR frames to an established connection. It
// does not read; pair it with a dispatch.Agent in RoleViewer mode (or
// any reader that calls wire.NewFramer(conn).Next() in a loop) to handle
// inbound S->C commands on the same connection.
type Client struct {
	w io.Writer
}

// New wraps an already-established HackVR stream (post hackvr-hello or
// post HTTP/1.1 Upgrade) for outbound command assembly.
func New(w io.Writer) *Client {
	return &Client{w: w}
}

func (c *Client) send(name string, args ...string) error {
	frame, err := wire.BuildFrame(name, args...)
	if err != nil {
		return fmt.Errorf("client: building %s: %w", name, err)
	}
	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("client: writing %s: %w", name, err)
	}
	return nil
}

// Chat sends a chat message (§4.3's either-direction chat command).
func (c *Client) Chat(text string) error {
	return c.send("chat", text)
}

// TapObject reports a pick on a clickable triangle (§4.8, §4.9): obj is
// the concrete object id the viewer picked (never a selector pattern —
// the viewer always reports the single object it actually hit), kind is
// which pointer button produced the pick, and tag is the picked
// triangle's tag (or the sprite's derived pick tag).
func (c *Client) TapObject(obj string, kind wire.TapKind, tag string) error {
	return c.send("tap-object", obj, string(kind), tag)
}

// TellObject reports a text-capable object interaction (§4.9).
func (c *Client) TellObject(obj, text string) error {
	return c.send("tell-object", obj, text)
}

// SendInput submits the current text-input draft (§4.9). Valid only
// while the viewer's local text_input_mode is on; the server silently
// drops it otherwise.
func (c *Client) SendInput(text string) error {
	return c.send("send-input", text)
}

// Raycast reports a directional pick while raycast_mode is active
// (§4.9). dir must be non-zero; the server drops the command otherwise.
func (c *Client) Raycast(origin, dir wire.Vec3) error {
	return c.send("raycast", origin.String(), dir.String())
}

// RaycastCancel exits raycast_mode from the viewer side.
func (c *Client) RaycastCancel() error {
	return c.send("raycast-cancel")
}

// ResumeSession requests restoration of a previously announced session
// (§4.7). Whether this still requires re-authentication is server-defined.
func (c *Client) ResumeSession(token []byte) error {
	return c.send("resume-session", wire.FormatSessionToken(token))
}

// SetUser begins the auth cycle's viewer half (§4.6), in response to a
// server request-user.
func (c *Client) SetUser(user string) error {
	return c.send("set-user", user)
}

// Authenticate answers a server request-authentication challenge with an
// Ed25519 signature over auth.SigningMessage(user, nonce) (§4.6). This
// package never holds private key material; the caller signs elsewhere
// and passes the resulting signature in.
func (c *Client) Authenticate(user string, signature []byte) error {
	return c.send("authenticate", user, wire.FormatBytesN(signature))
}
