package models

import "time"

// Severity levels assigned upstream by the capture layer.
const (
	SeverityNormal   = "normal"
	SeverityMedium   = "medium"
	SeverityCritical = "critical"
)

// Attack types produced by classification.
const (
	AttackNormal     = "normal"
	AttackDoS        = "dos"
	AttackDDoS       = "ddos"
	AttackPortScan   = "port_scan"
	AttackPingFlood  = "ping_flood"
	AttackPingSweep  = "ping_sweep"
	AttackUDPFlood   = "udp_flood"
	AttackSuspicious = "suspicious_traffic"
)

// TrafficEvent represents a single observed flow sample. Severity is
// assigned upstream; GracePeriod and DecisionRequired are advisory flags
// meaning an operator decision on auto-blocking is still pending.
type TrafficEvent struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	SourceIP         string    `json:"source_ip"`
	DestIP           string    `json:"dest_ip"`
	DestPort         int       `json:"dest_port"`
	Protocol         string    `json:"protocol"` // TCP, UDP, ICMP
	Bytes            int       `json:"bytes"`
	Severity         string    `json:"severity"` // normal, medium, critical
	Description      string    `json:"description,omitempty"`
	GracePeriod      bool      `json:"grace_period,omitempty"`
	DecisionRequired bool      `json:"decision_required,omitempty"`
}

// Detection is the output of classifying one traffic event.
type Detection struct {
	AttackType  string  `json:"attack_type"`
	Confidence  float64 `json:"confidence"` // 0.0 to 1.0
	IsMalicious bool    `json:"is_malicious"`
	Frequency   int     `json:"frequency"` // events/minute over the window
	Samples     int     `json:"samples"`   // events observed in-window
}

// TempBanRecord tracks a time-bounded enforcement action.
type TempBanRecord struct {
	Address            string    `json:"address"`
	Reason             string    `json:"reason"`
	BlockedAt          time.Time `json:"blocked_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	EnforcementMethods []string  `json:"enforcement_methods"`
}

// Policy is a read-only snapshot of the enforcement policy, read at
// decision time.
type Policy struct {
	WindowSeconds   int  `json:"window_seconds"`
	Threshold       int  `json:"threshold"`
	BanMinutes      int  `json:"ban_minutes"`
	FirewallEnabled bool `json:"firewall_enabled"`
	DenyListEnabled bool `json:"deny_list_enabled"`
}

// Alert represents a security alert surfaced to operators.
type Alert struct {
	ID         string    `json:"id"`
	Level      string    `json:"level"` // INFO, WARNING, CRITICAL
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	AttackType string    `json:"attack_type,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatsSnapshot is the dashboard aggregate recomputed by the scheduler.
type StatsSnapshot struct {
	Timestamp       time.Time      `json:"timestamp"`
	WindowHours     int            `json:"window_hours"`
	TotalEvents     int            `json:"total_events"`
	MaliciousEvents int            `json:"malicious_events"`
	ByAttackType    map[string]int `json:"by_attack_type"`
	TopSources      []IPCount      `json:"top_sources"`
	ActiveBans      int            `json:"active_bans"`
	BytesTotal      int64          `json:"bytes_total"`
}

type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}
