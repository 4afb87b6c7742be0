package replay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// ErrNetworkDisabled is returned by every dial attempted inside a replay.
var ErrNetworkDisabled = errors.New("network access is disabled during replay")

// Clock supplies wall time to code running inside a replay.
type Clock interface {
	Now() time.Time
}

// Dialer opens network connections. It matches net.Dialer.DialContext.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// OfflineDialer fails every dial immediately with ErrNetworkDisabled.
type OfflineDialer struct{}

// DialContext implements Dialer.
func (OfflineDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	return nil, &net.OpError{
		Op:  "dial",
		Net: network,
		Err: fmt.Errorf("%s: %w", address, ErrNetworkDisabled),
	}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// Sandbox holds the determinism guards for one replay call: a seeded
// random source, a dialer, an HTTP client built on that dialer, and a
// fixed clock.
//
// A Sandbox is created per call and never shared, so replays do not touch
// process-wide state and may run concurrently. Its Rand is not safe for
// concurrent use; hooks run sequentially within one replay.
type Sandbox struct {
	Seed       int64
	Rand       *rand.Rand
	Dialer     Dialer
	HTTPClient *http.Client
	Clock      Clock
}

func newSandbox(seed int64, now time.Time, dialer Dialer) *Sandbox {
	if dialer == nil {
		dialer = OfflineDialer{}
	}
	return &Sandbox{
		Seed:   seed,
		Rand:   rand.New(rand.NewSource(seed)),
		Dialer: dialer,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:             nil,
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
			Timeout: 5 * time.Second,
		},
		Clock: fixedClock{t: now},
	}
}
