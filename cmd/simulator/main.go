package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nshruti113/netsentry/internal/models"
)

type Simulator struct {
	serverURL    string
	normalRate   int
	attackActive bool
	attackType   string
}

func NewSimulator(serverURL string) *Simulator {
	return &Simulator{
		serverURL:  serverURL,
		normalRate: 20,
	}
}

// GenerateNormalTraffic creates benign background flows from random sources.
func (s *Simulator) GenerateNormalTraffic() models.TrafficEvent {
	sourceIP := fmt.Sprintf("%d.%d.%d.%d",
		rand.Intn(223)+1, rand.Intn(256), rand.Intn(256), rand.Intn(256))

	return models.TrafficEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		SourceIP:  sourceIP,
		DestIP:    "192.168.1.100",
		DestPort:  443,
		Protocol:  "TCP",
		Bytes:     rand.Intn(1400) + 200,
		Severity:  models.SeverityNormal,
	}
}

// GenerateDDoS simulates a high-rate TCP flood from a small botnet.
func (s *Simulator) GenerateDDoS() []models.TrafficEvent {
	attackIPs := []string{
		"203.0.113.10", "203.0.113.11", "203.0.113.12",
	}

	count := rand.Intn(300) + 200

	events := make([]models.TrafficEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.TrafficEvent{
			ID:          uuid.New().String(),
			Timestamp:   time.Now(),
			SourceIP:    attackIPs[rand.Intn(len(attackIPs))],
			DestIP:      "192.168.1.100",
			DestPort:    80,
			Protocol:    "TCP",
			Bytes:       rand.Intn(1400) + 100,
			Severity:    models.SeverityCritical,
			Description: "tcp flood",
		})
	}

	return events
}

// GenerateDoS simulates a moderate-rate flood from a single source, fast
// enough to trip detection but below distributed-flood rates.
func (s *Simulator) GenerateDoS() []models.TrafficEvent {
	count := rand.Intn(3) + 4

	events := make([]models.TrafficEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.TrafficEvent{
			ID:          uuid.New().String(),
			Timestamp:   time.Now(),
			SourceIP:    "203.0.113.40",
			DestIP:      "192.168.1.100",
			DestPort:    80,
			Protocol:    "TCP",
			Bytes:       rand.Intn(1400) + 100,
			Severity:    models.SeverityMedium,
			Description: "tcp flood",
		})
	}

	return events
}

// GeneratePortScan simulates probing many ports with small packets.
func (s *Simulator) GeneratePortScan() []models.TrafficEvent {
	scanner := "198.51.100.20"

	count := rand.Intn(30) + 15

	events := make([]models.TrafficEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.TrafficEvent{
			ID:          uuid.New().String(),
			Timestamp:   time.Now(),
			SourceIP:    scanner,
			DestIP:      "192.168.1.100",
			DestPort:    rand.Intn(1024),
			Protocol:    "TCP",
			Bytes:       rand.Intn(80) + 40,
			Severity:    models.SeverityMedium,
			Description: "port probe",
		})
	}

	return events
}

// GeneratePingFlood simulates an ICMP flood from one source.
func (s *Simulator) GeneratePingFlood() []models.TrafficEvent {
	count := rand.Intn(40) + 30

	events := make([]models.TrafficEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.TrafficEvent{
			ID:          uuid.New().String(),
			Timestamp:   time.Now(),
			SourceIP:    "198.51.100.30",
			DestIP:      "192.168.1.100",
			Protocol:    "ICMP",
			Bytes:       64,
			Severity:    models.SeverityCritical,
			Description: "icmp flood",
		})
	}

	return events
}

// GenerateUDPFlood simulates a UDP amplification flood.
func (s *Simulator) GenerateUDPFlood() []models.TrafficEvent {
	count := rand.Intn(80) + 60

	events := make([]models.TrafficEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.TrafficEvent{
			ID:          uuid.New().String(),
			Timestamp:   time.Now(),
			SourceIP:    "203.0.113.50",
			DestIP:      "192.168.1.100",
			DestPort:    rand.Intn(65535),
			Protocol:    "UDP",
			Bytes:       rand.Intn(1400) + 100,
			Severity:    models.SeverityCritical,
			Description: "udp flood",
		})
	}

	return events
}

// SendEvent posts one event to the ingest endpoint.
func (s *Simulator) SendEvent(ev models.TrafficEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	resp, err := http.Post(s.serverURL+"/api/traffic/ingest", "application/json",
		bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return nil
}

// Run starts the simulator.
func (s *Simulator) Run() {
	fmt.Println("🚀 Starting Traffic Simulator...")
	fmt.Println("Generating normal traffic at", s.normalRate, "events/sec")
	fmt.Println("🎯 DEMO MODE: Will cycle through all attack types")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	attackTicker := time.NewTicker(15 * time.Second)
	defer attackTicker.Stop()

	attackSequence := []string{"DDOS", "DOS", "PORT_SCAN", "PING_FLOOD", "UDP_FLOOD"}
	currentAttackIndex := 0

	s.attackActive = true
	s.attackType = attackSequence[0]
	fmt.Printf("⚠️  Starting %s attack\n", s.attackType)

	for {
		select {
		case <-ticker.C:
			for i := 0; i < s.normalRate; i++ {
				ev := s.GenerateNormalTraffic()
				go s.SendEvent(ev)
			}

			if s.attackActive {
				var attackEvents []models.TrafficEvent

				switch s.attackType {
				case "DDOS":
					attackEvents = s.GenerateDDoS()
				case "DOS":
					attackEvents = s.GenerateDoS()
				case "PORT_SCAN":
					attackEvents = s.GeneratePortScan()
				case "PING_FLOOD":
					attackEvents = s.GeneratePingFlood()
				case "UDP_FLOOD":
					attackEvents = s.GenerateUDPFlood()
				}

				for _, ev := range attackEvents {
					go s.SendEvent(ev)
				}
			}

		case <-attackTicker.C:
			if s.attackActive {
				fmt.Println("✅ Attack stopped")
				s.attackActive = false
			} else {
				currentAttackIndex = (currentAttackIndex + 1) % len(attackSequence)
				s.attackActive = true
				s.attackType = attackSequence[currentAttackIndex]
				fmt.Printf("⚠️  Starting %s attack\n", s.attackType)
			}
		}
	}
}

func main() {
	serverURL := "http://localhost:8888"
	simulator := NewSimulator(serverURL)

	fmt.Println("NetSentry - Traffic Simulator")
	fmt.Println("=============================")

	simulator.Run()
}
