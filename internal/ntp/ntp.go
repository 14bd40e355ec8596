package ntp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/beevik/ntp"
	"github.com/fisaks/voldisp/internal/clock"
	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/voldisp"
)

// SNTP v3 client requests start with 0x1b (LI=0, VN=3, Mode=3).
const protocolVersion = 3

// Query asks server for the current time with a single SNTP request and
// returns the server's transmit timestamp.
func Query(ctx context.Context, server string, timeout time.Duration) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{
		Timeout: timeout,
		Version: protocolVersion,
		Dialer: func(localAddress, remoteAddress string) (net.Conn, error) {
			dialCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			var d net.Dialer
			return d.DialContext(dialCtx, "udp", remoteAddress)
		},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("invalid reply from %s: %w", server, err)
	}
	return resp.Time.UTC(), nil
}

// Syncer sets a clock's wall time from an NTP server.
type Syncer struct {
	Server  string
	Timeout time.Duration
	Clock   clock.Clock

	query func(ctx context.Context, server string, timeout time.Duration) (time.Time, error)
}

func NewSyncer(server string, timeout time.Duration, clk clock.Clock) *Syncer {
	return &Syncer{Server: server, Timeout: timeout, Clock: clk, query: Query}
}

func (s *Syncer) Sync(ctx context.Context) error {
	t, err := s.query(ctx, s.Server, s.Timeout)
	if err != nil {
		return voldisp.NewError(voldisp.TimeSyncFailed, "ntp sync", err)
	}
	before := s.Clock.Wall()
	s.Clock.SetWall(t)
	logging.Info("Clock synchronized", "server", s.Server, "time", t.Format(time.RFC3339), "skew", t.Sub(before).Round(time.Millisecond).String())
	return nil
}
