package models

import "time"

// Notification kinds.
const (
	KindIntrusion        = "intrusion"
	KindIPBlocked        = "ip-blocked"
	KindBlockingComplete = "blocking-complete"
)

// NotificationItem lives in the bounded delivery queue from enqueue to
// delivery or drop. Exactly one payload pointer is set, matching Kind.
type NotificationItem struct {
	Kind       string            `json:"kind"`
	SourceIP   string            `json:"source_ip"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Intrusion  *IntrusionPayload `json:"intrusion,omitempty"`
	Blocked    *BlockedPayload   `json:"blocked,omitempty"`
	Complete   *CompletePayload  `json:"complete,omitempty"`
}

// IntrusionPayload describes a detected intrusion. GracePeriod means the
// operator has not yet decided whether to auto-block; such notifications
// must repeat until acknowledged and are never throttled.
type IntrusionPayload struct {
	AttackType       string  `json:"attack_type"`
	Confidence       float64 `json:"confidence"`
	Severity         string  `json:"severity"`
	GracePeriod      bool    `json:"grace_period"`
	DecisionRequired bool    `json:"decision_required"`
}

// BlockedPayload announces that an address was banned.
type BlockedPayload struct {
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CompletePayload announces which enforcement mechanisms took effect.
type CompletePayload struct {
	Methods []string `json:"methods"`
}
