// Package policy exposes the enforcement policy as a read-only snapshot,
// read at decision time rather than cached across calls.
package policy

import (
	"context"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/models"
)

// Provider returns the current policy snapshot.
type Provider interface {
	Current(ctx context.Context) models.Policy
}

// Reader is what the provider needs from the cache store.
type Reader interface {
	ReadPolicy(ctx context.Context) (map[string]string, error)
}

// Static always returns the same policy. Used for tests and development.
type Static struct {
	Policy models.Policy
}

func (s Static) Current(ctx context.Context) models.Policy {
	return s.Policy
}

// StoreProvider reads the policy hash from the cache store on every call,
// falling back to defaults for missing or unreadable fields.
type StoreProvider struct {
	store    Reader
	defaults models.Policy
}

func NewStoreProvider(store Reader, defaults models.Policy) *StoreProvider {
	return &StoreProvider{store: store, defaults: defaults}
}

func (p *StoreProvider) Current(ctx context.Context) models.Policy {
	pol := p.defaults

	fields, err := p.store.ReadPolicy(ctx)
	if err != nil {
		log.Warnf("reading policy, using defaults: %v", err)
		return pol
	}

	if v, ok := atoi(fields["window_seconds"]); ok {
		pol.WindowSeconds = v
	}
	if v, ok := atoi(fields["threshold"]); ok {
		pol.Threshold = v
	}
	if v, ok := atoi(fields["ban_minutes"]); ok {
		pol.BanMinutes = v
	}
	if v, ok := parseBool(fields["firewall_enabled"]); ok {
		pol.FirewallEnabled = v
	}
	if v, ok := parseBool(fields["deny_list_enabled"]); ok {
		pol.DenyListEnabled = v
	}
	return pol
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return v, true
}
