package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/models"
)

// DefaultWorkerTimeout bounds how long we wait on the out-of-process
// analysis worker before computing the detection locally.
const DefaultWorkerTimeout = 5 * time.Second

// RemoteClassifier delegates classification to an out-of-process analysis
// worker over HTTP. Any worker failure or timeout degrades to the local
// in-process classifier; the caller never sees an error or waits beyond
// the timeout budget.
type RemoteClassifier struct {
	url    string
	client *http.Client
	local  *Classifier
}

// NewRemoteClassifier wraps local with a worker at url. An empty url
// disables delegation entirely.
func NewRemoteClassifier(url string, timeout time.Duration, local *Classifier) *RemoteClassifier {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	return &RemoteClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		local:  local,
	}
}

func (r *RemoteClassifier) Classify(ctx context.Context, ev models.TrafficEvent) models.Detection {
	if r.url == "" {
		return r.local.Classify(ev)
	}

	det, err := r.predict(ctx, ev)
	if err != nil {
		log.WithFields(log.Fields{
			"source_ip": ev.SourceIP,
			"worker":    r.url,
		}).Warnf("analysis worker unavailable, classifying locally: %v", err)
		return r.local.Classify(ev)
	}
	return det
}

func (r *RemoteClassifier) predict(ctx context.Context, ev models.TrafficEvent) (models.Detection, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return models.Detection{}, fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return models.Detection{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return models.Detection{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Detection{}, fmt.Errorf("worker returned status %d", resp.StatusCode)
	}

	var det models.Detection
	if err := json.NewDecoder(resp.Body).Decode(&det); err != nil {
		return models.Detection{}, fmt.Errorf("decoding prediction: %w", err)
	}
	return det, nil
}
