// Package firewall abstracts the packet-filter control plane used to
// enforce temporary bans.
package firewall

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result reports whether a block took effect and through which method.
type Result struct {
	Applied bool
	Method  string
}

// ControlPlane applies and removes address-level blocks. Expiry of applied
// blocks is tracked by the enforcement manager, not the firewall.
type ControlPlane interface {
	ApplyBlock(ctx context.Context, address string, ttl time.Duration) (Result, error)
	RemoveBlock(ctx context.Context, address string) error
}

// IPTables drops traffic from banned sources via the netfilter INPUT chain.
type IPTables struct {
	Binary string // defaults to "iptables"
	Chain  string // defaults to "INPUT"
}

func NewIPTables() *IPTables {
	return &IPTables{Binary: "iptables", Chain: "INPUT"}
}

func (f *IPTables) ApplyBlock(ctx context.Context, address string, ttl time.Duration) (Result, error) {
	out, err := exec.CommandContext(ctx, f.Binary, "-I", f.Chain, "-s", address, "-j", "DROP").CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("iptables insert for %s: %v (%s)", address, err, strings.TrimSpace(string(out)))
	}
	return Result{Applied: true, Method: "iptables"}, nil
}

func (f *IPTables) RemoveBlock(ctx context.Context, address string) error {
	out, err := exec.CommandContext(ctx, f.Binary, "-D", f.Chain, "-s", address, "-j", "DROP").CombinedOutput()
	if err != nil {
		return fmt.Errorf("iptables delete for %s: %v (%s)", address, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Noop is used in development mode where no packet filter is reachable.
// Blocks report as applied so the rest of the pipeline behaves normally.
type Noop struct{}

func (Noop) ApplyBlock(ctx context.Context, address string, ttl time.Duration) (Result, error) {
	log.WithField("address", address).Debug("noop firewall: block skipped")
	return Result{Applied: true, Method: "noop"}, nil
}

func (Noop) RemoveBlock(ctx context.Context, address string) error {
	return nil
}
