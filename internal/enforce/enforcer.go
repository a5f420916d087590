// Package enforce converts block decisions into firewall and deny-list
// mutations with a TTL-tracked ban record and a symmetric unblock path.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/firewall"
	"github.com/nshruti113/netsentry/internal/models"
	"github.com/nshruti113/netsentry/internal/policy"
)

var (
	// Validation errors indicate a caller bug and are never swallowed.
	ErrEmptyAddress    = errors.New("empty address")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrReservedAddress = errors.New("reserved address")

	// ErrEnforcementFailed means a policy-enabled mechanism did not take
	// effect; a silently-unenforced ban is a security gap.
	ErrEnforcementFailed = errors.New("enforcement failed")
)

var (
	blocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsentry_blocks_total",
		Help: "Block attempts by outcome.",
	}, []string{"outcome"})
)

// RegisterMetrics registers the enforcer counters on reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(blocksTotal)
}

// BanStore persists ban records and the expiry-sorted index.
type BanStore interface {
	SaveTempBan(ctx context.Context, rec models.TempBanRecord, ttl time.Duration) error
	GetTempBan(ctx context.Context, address string) (*models.TempBanRecord, error)
	DeleteTempBan(ctx context.Context, address string) error
	AddBanIndex(ctx context.Context, address string, expiresAt time.Time) error
	RemoveBanIndex(ctx context.Context, address string) error
	ActiveBanAddresses(ctx context.Context, now time.Time) ([]string, error)
	PruneBanIndex(ctx context.Context, before time.Time) (int64, error)
}

// DenyList is the reverse-proxy deny-list surface.
type DenyList interface {
	AddDeny(address string) bool
	RemoveDeny(address string) bool
}

// Notifier receives ban lifecycle notifications, best effort.
type Notifier interface {
	Enqueue(item models.NotificationItem)
}

// Enforcer manages temporary bans.
type Enforcer struct {
	store    BanStore
	firewall firewall.ControlPlane
	denies   DenyList
	policy   policy.Provider
	notifier Notifier // optional
}

func New(store BanStore, fw firewall.ControlPlane, denies DenyList, pol policy.Provider, notifier Notifier) *Enforcer {
	return &Enforcer{
		store:    store,
		firewall: fw,
		denies:   denies,
		policy:   pol,
		notifier: notifier,
	}
}

// validateAddress rejects empty and reserved addresses. These must never
// reach the firewall layer.
func validateAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return ErrEmptyAddress
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if ip.IsLoopback() || ip.IsUnspecified() || ip.Equal(net.IPv4bcast) {
		return fmt.Errorf("%w: %s", ErrReservedAddress, address)
	}
	return nil
}

// Block applies a temporary ban to address. ttlOverrideSeconds takes
// precedence over the policy ban duration when positive; the effective TTL
// is floored at one second. If the firewall is policy-enabled and reports
// failure, Block fails and no record is persisted.
func (e *Enforcer) Block(ctx context.Context, address, reason string, ttlOverrideSeconds int) (*models.TempBanRecord, error) {
	if err := validateAddress(address); err != nil {
		blocksTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	pol := e.policy.Current(ctx)

	ttlSeconds := ttlOverrideSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = pol.BanMinutes * 60
	}
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	now := time.Now()
	rec := models.TempBanRecord{
		Address:   address,
		Reason:    reason,
		BlockedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if pol.FirewallEnabled {
		res, err := e.firewall.ApplyBlock(ctx, address, ttl)
		if err != nil {
			blocksTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("%w: firewall block for %s: %v", ErrEnforcementFailed, address, err)
		}
		if !res.Applied {
			blocksTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("%w: firewall reported block for %s not applied", ErrEnforcementFailed, address)
		}
		rec.EnforcementMethods = append(rec.EnforcementMethods, res.Method)
	}

	if pol.DenyListEnabled {
		if e.denies.AddDeny(address) {
			rec.EnforcementMethods = append(rec.EnforcementMethods, "proxy_denylist")
		} else {
			// Secondary mechanism; the firewall block already holds.
			log.WithField("address", address).Warn("deny-list update failed")
		}
	}

	if err := e.store.SaveTempBan(ctx, rec, ttl); err != nil {
		blocksTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persisting ban record for %s: %w", address, err)
	}
	if err := e.store.AddBanIndex(ctx, address, rec.ExpiresAt); err != nil {
		log.WithField("address", address).Warnf("updating ban index: %v", err)
	}

	blocksTotal.WithLabelValues("applied").Inc()
	log.WithFields(log.Fields{
		"address": address,
		"reason":  reason,
		"ttl":     ttl.String(),
		"methods": rec.EnforcementMethods,
	}).Info("address blocked")

	if e.notifier != nil {
		e.notifier.Enqueue(models.NotificationItem{
			Kind:     models.KindIPBlocked,
			SourceIP: address,
			Blocked:  &models.BlockedPayload{Reason: reason, ExpiresAt: rec.ExpiresAt},
		})
		e.notifier.Enqueue(models.NotificationItem{
			Kind:     models.KindBlockingComplete,
			SourceIP: address,
			Complete: &models.CompletePayload{Methods: rec.EnforcementMethods},
		})
	}

	return &rec, nil
}

// Unblock removes both enforcement mechanisms best effort and deletes the
// ban record and its index entry. Mechanism failures are logged, not fatal:
// the operator's intent to unblock still clears local state.
func (e *Enforcer) Unblock(ctx context.Context, address string) error {
	if err := validateAddress(address); err != nil {
		return err
	}

	if err := e.firewall.RemoveBlock(ctx, address); err != nil {
		log.WithField("address", address).Warnf("removing firewall block: %v", err)
	}
	if !e.denies.RemoveDeny(address) {
		log.WithField("address", address).Warn("removing deny-list entry failed")
	}

	if err := e.store.DeleteTempBan(ctx, address); err != nil {
		return fmt.Errorf("deleting ban record for %s: %w", address, err)
	}
	if err := e.store.RemoveBanIndex(ctx, address); err != nil {
		return fmt.Errorf("removing ban index entry for %s: %w", address, err)
	}

	log.WithField("address", address).Info("address unblocked")
	return nil
}

// IsBlocked reports whether address has a live ban record.
func (e *Enforcer) IsBlocked(ctx context.Context, address string) (bool, error) {
	rec, err := e.store.GetTempBan(ctx, address)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// ListActive returns the live ban records. The expiry index is advisory:
// addresses whose keyed record already expired are skipped.
func (e *Enforcer) ListActive(ctx context.Context) ([]models.TempBanRecord, error) {
	addrs, err := e.store.ActiveBanAddresses(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	records := make([]models.TempBanRecord, 0, len(addrs))
	for _, addr := range addrs {
		rec, err := e.store.GetTempBan(ctx, addr)
		if err != nil {
			log.WithField("address", addr).Warnf("reading ban record: %v", err)
			continue
		}
		if rec == nil {
			continue // stale index entry
		}
		records = append(records, *rec)
	}
	return records, nil
}

// SweepExpired prunes index entries whose ban already lapsed. The keyed
// records expire on their own via TTL.
func (e *Enforcer) SweepExpired(ctx context.Context) error {
	n, err := e.store.PruneBanIndex(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debugf("pruned %d expired ban index entries", n)
	}
	return nil
}
