package detection

import (
	"math"
	"strings"
	"time"

	"github.com/nshruti113/netsentry/internal/models"
)

// Classifier turns a raw traffic event into a detection using per-source
// frequency tracking and a protocol-specific threshold ladder. It never
// performs I/O and is safe for concurrent use.
type Classifier struct {
	tracker *Tracker
}

func NewClassifier() *Classifier {
	return &Classifier{tracker: NewTracker()}
}

// Classify analyzes one event. Events with upstream severity "normal" are
// advisory-only traffic and short-circuit to a normal detection; they still
// count toward the source's frequency window.
func (c *Classifier) Classify(ev models.TrafficEvent) models.Detection {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	frequency, samples := c.tracker.Observe(ev.SourceIP, ev.Bytes, now)

	det := models.Detection{
		AttackType: models.AttackNormal,
		Frequency:  frequency,
		Samples:    samples,
	}

	if ev.Severity == models.SeverityNormal || ev.Severity == "" {
		return det
	}

	f := float64(frequency)

	switch strings.ToUpper(ev.Protocol) {
	case "TCP":
		switch {
		case frequency >= 500 && samples >= 100:
			det.AttackType = models.AttackDDoS
			det.Confidence = math.Min(0.95, 0.7+(f/1000)*0.25)
		case frequency >= 200 && samples >= 50:
			det.AttackType = models.AttackDoS
			det.Confidence = math.Min(0.90, 0.6+(f/500)*0.3)
		case frequency >= 10 && frequency <= 100 && ev.Bytes < 150 && samples >= 5:
			det.AttackType = models.AttackPortScan
			det.Confidence = math.Min(0.85, 0.5+(f/100)*0.35)
		}
	case "ICMP":
		switch {
		case frequency >= 30:
			det.AttackType = models.AttackPingFlood
			det.Confidence = math.Min(0.90, 0.6+(f/100)*0.3)
		case frequency >= 20:
			det.AttackType = models.AttackPingSweep
			det.Confidence = 0.75
		}
	case "UDP":
		if frequency >= 50 {
			det.AttackType = models.AttackUDPFlood
			det.Confidence = math.Min(0.90, 0.6+(f/200)*0.3)
		}
	}

	if det.AttackType == models.AttackNormal {
		// Elevated severity with no matching rule: surfaced but not blocked.
		det.AttackType = models.AttackSuspicious
		det.Confidence = 0.5
	}

	det.IsMalicious = det.AttackType != models.AttackNormal &&
		det.AttackType != models.AttackSuspicious

	return det
}

// Tracked returns the number of source addresses currently tracked.
func (c *Classifier) Tracked() int {
	return c.tracker.Len()
}
