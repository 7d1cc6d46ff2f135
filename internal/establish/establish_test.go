package establish

import (
	"bytes"
	"strings"
	"testing"
)

func TestServerRawHappyPath(t *testing.T) {
	in := strings.NewReader("hackvr-hello\tv2\thackvr://example.com/world\r\n")
	var out bytes.Buffer

	result, err := ServerRaw(in, &out, "hackvr")
	if err != nil {
		t.Fatalf("ServerRaw: %v", err)
	}
	if result.Version != 1 {
		t.Fatalf("effective version = %d, want 1 (min(2,1))", result.Version)
	}
	if out.String() != "hackvr-hello\tv1\r\n" {
		t.Fatalf("server reply = %q", out.String())
	}
	if result.Origin.Host != "example.com" {
		t.Fatalf("origin host = %q", result.Origin.Host)
	}
}

func TestServerRawRejectsWrongFirstLine(t *testing.T) {
	in := strings.NewReader("chat\thello\r\n")
	var out bytes.Buffer
	if _, err := ServerRaw(in, &out, "hackvr"); err == nil {
		t.Fatal("a non-hello first line must be fatal")
	}
}

func TestServerRawRejectsFragment(t *testing.T) {
	in := strings.NewReader("hackvr-hello\tv1\thackvr://example.com/world#frag\r\n")
	var out bytes.Buffer
	if _, err := ServerRaw(in, &out, "hackvr"); err == nil {
		t.Fatal("a uri with a fragment must be rejected")
	}
}

func TestServerRawCarriesSessionToken(t *testing.T) {
	token := strings.Repeat("A", 43) // 43 base64url chars, decodes to 32 zero bytes
	in := strings.NewReader("hackvr-hello\tv1\thackvr://example.com/world\t" + token + "\r\n")
	var out bytes.Buffer
	result, err := ServerRaw(in, &out, "hackvr")
	if err != nil {
		t.Fatalf("ServerRaw: %v", err)
	}
	if len(result.SessionToken) != 32 {
		t.Fatalf("expected a 32-byte decoded session token, got %d bytes", len(result.SessionToken))
	}
}

func TestServerRawRejectsMalformedSessionToken(t *testing.T) {
	in := strings.NewReader("hackvr-hello\tv1\thackvr://example.com/world\tshort\r\n")
	var out bytes.Buffer
	if _, err := ServerRaw(in, &out, "hackvr"); err == nil {
		t.Fatal("a session token that does not decode to 32 bytes must be rejected")
	}
}

func TestServerHTTPHappyPath(t *testing.T) {
	req := "GET /world HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Connection: upgrade\r\n" +
		"Upgrade: hackvr\r\n" +
		"HackVr-Version: v1\r\n" +
		"\r\n"
	in := strings.NewReader(req)
	var out bytes.Buffer

	result, err := ServerHTTP(in, &out, "http+hackvr")
	if err != nil {
		t.Fatalf("ServerHTTP: %v", err)
	}
	if result.Version != 1 {
		t.Fatalf("version = %d, want 1", result.Version)
	}
	if !strings.Contains(out.String(), "101 Switching Protocols") {
		t.Fatalf("response missing 101 status: %q", out.String())
	}
	if result.Origin.Host != "example.com" {
		t.Fatalf("origin host = %q", result.Origin.Host)
	}
}

func TestServerHTTPRejectsMissingUpgradeHeader(t *testing.T) {
	req := "GET /world HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Connection: upgrade\r\n" +
		"HackVr-Version: v1\r\n" +
		"\r\n"
	in := strings.NewReader(req)
	var out bytes.Buffer
	if _, err := ServerHTTP(in, &out, "http+hackvr"); err == nil {
		t.Fatal("missing Upgrade: hackvr header must be fatal")
	}
}

func TestServerHTTPRejectsWrongVersion(t *testing.T) {
	req := "GET /world HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Connection: upgrade\r\n" +
		"Upgrade: hackvr\r\n" +
		"HackVr-Version: v2\r\n" +
		"\r\n"
	in := strings.NewReader(req)
	var out bytes.Buffer
	if _, err := ServerHTTP(in, &out, "http+hackvr"); err == nil {
		t.Fatal("HTTP establishment is pinned to v1; a non-v1 header must be fatal")
	}
}
