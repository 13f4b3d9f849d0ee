package monitor

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"watchtorian/internal/config"
	"watchtorian/internal/models"
)

const (
	defaultProbeTimeout = 4 * time.Second
	defaultDNSPort      = "53"
	maxParallelProbes   = 8
)

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober checks reachability with plain TCP connects.
type Prober struct {
	dial DialFunc
}

// NewProber returns a Prober using dial, or a net.Dialer when dial is nil.
func NewProber(dial DialFunc) *Prober {
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	return &Prober{dial: dial}
}

// CheckInternet reports whether target accepts a TCP connection. A target
// without a port is dialled on the DNS port.
func (p *Prober) CheckInternet(ctx context.Context, target string, timeout time.Duration) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		target = "1.1.1.1"
	}
	address := target
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, defaultDNSPort)
	}
	return p.reachable(ctx, address, timeout)
}

// ProbeMachines probes every machine and returns the results in input order.
func (p *Prober) ProbeMachines(ctx context.Context, machines []config.Machine) []models.MachineProbe {
	if len(machines) == 0 {
		return nil
	}
	results := make([]models.MachineProbe, len(machines))
	var g errgroup.Group
	g.SetLimit(maxParallelProbes)
	for i, m := range machines {
		i, m := i, m
		g.Go(func() error {
			address := net.JoinHostPort(m.Address, strconv.Itoa(m.Port))
			results[i] = models.MachineProbe{
				Name:    m.Name,
				Address: m.Address,
				Port:    m.Port,
				Method:  m.Method,
				Result:  p.reachable(ctx, address, m.Timeout()),
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) reachable(ctx context.Context, address string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
