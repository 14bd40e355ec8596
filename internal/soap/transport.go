package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Transport performs one request/response exchange on a fresh connection.
type Transport interface {
	RoundTrip(ctx context.Context, addr string, req []byte) ([]byte, error)
}

var ErrResponseTooLarge = errors.New("response exceeds limit")

var envelopeEnd = []byte("</s:Envelope>")

// TCPTransport dials, writes the request and reads until the peer closes, the
// envelope terminator arrives, or Timeout (connect + read) expires.
type TCPTransport struct {
	Timeout     time.Duration
	MaxResponse int
	ChunkSize   int
}

func NewTCPTransport(timeout time.Duration, maxResponse int) *TCPTransport {
	return &TCPTransport{Timeout: timeout, MaxResponse: maxResponse, ChunkSize: 512}
}

func (t *TCPTransport) RoundTrip(ctx context.Context, addr string, req []byte) ([]byte, error) {
	deadline := time.Now().Add(t.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	chunk := make([]byte, max(t.ChunkSize, 64))
	var data []byte
	for {
		n, err := conn.Read(chunk)
		data = append(data, chunk[:n]...)
		if t.MaxResponse > 0 && len(data) > t.MaxResponse {
			return nil, ErrResponseTooLarge
		}
		if bytes.Contains(data, envelopeEnd) {
			return data, nil
		}
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("recv after %d bytes: %w", len(data), err)
		}
	}
}
