package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request bound to the context.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body bound to the context.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON.
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct.
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// progressReporter rate-limits progress lines across workers.
type progressReporter struct {
	last     atomic.Int64 // unix nanos of the last report
	interval time.Duration
}

// tick reports whether the caller won the right to print this interval.
func (p *progressReporter) tick() bool {
	now := time.Now().UnixNano()
	last := p.last.Load()
	if now-last < int64(p.interval) {
		return false
	}
	return p.last.CompareAndSwap(last, now)
}

// submitTeams posts submissions concurrently using a worker pool.
func submitTeams(ctx context.Context, config *Config, teams []TeamSubmission, stats *Stats) error {
	log.Printf("📤 Submitting %d teams with %d workers...", len(teams), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/teams"

	// Counters for statistics
	var (
		successful int64
		duplicate  int64
		failed     int64
		submitted  int64
	)

	reporter := &progressReporter{interval: progressInterval}

	// Create worker pool
	teamChan := make(chan TeamSubmission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for team := range teamChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleTeam(ctx, client, url, team)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch result {
					case "success":
						atomic.AddInt64(&successful, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					// Progress reporting
					if reporter.tick() {
						total := atomic.LoadInt64(&submitted)
						succ := atomic.LoadInt64(&successful)
						dup := atomic.LoadInt64(&duplicate)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d submitted (success: %d, duplicate: %d, failed: %d)",
								total, len(teams), succ, dup, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (success: %d, duplicate: %d, failed: %d)",
								total, len(teams), succ, dup, fail)
						}
					}
				}
			}
		}()
	}

	// Send teams to workers
	go func() {
		defer close(teamChan)
		for _, team := range teams {
			select {
			case <-ctx.Done():
				return
			case teamChan <- team:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.TeamsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.TeamsSuccessful = int(atomic.LoadInt64(&successful))
	stats.TeamsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.TeamsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Team submission completed:
   Successful: %d
   Duplicate: %d
   Failed: %d
`, stats.TeamsSuccessful, stats.TeamsDuplicate, stats.TeamsFailed)

	return nil
}

// submitSingleTeam posts a single submission and returns the result.
func submitSingleTeam(ctx context.Context, client *HTTPClient, url string, team TeamSubmission) string {
	resp, err := client.Post(ctx, url, team)
	if err != nil {
		return "failed"
	}
	defer resp.Body.Close()

	// Read response body
	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	// Parse response based on status code
	switch resp.StatusCode {
	case StatusAccepted:
		// Accepted - new submission
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Status == "accepted" {
			return "success"
		}
		return "success" // Assume success for 202 even if parsing fails
	case StatusOK:
		// OK - duplicate submission
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate" // Assume duplicate for 200 even if parsing fails
	default:
		// Error (including 429 backpressure)
		return "failed"
	}
}
