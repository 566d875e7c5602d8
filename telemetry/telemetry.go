// Package telemetry provides opt-in usage telemetry for hydrate-go.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"
)

// Event represents one telemetry event.
type Event struct {
	EventType    string         `json:"event_type"`
	Provider     string         `json:"provider,omitempty"`
	Duration     *time.Duration `json:"duration,omitempty"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	OS           string         `json:"os"`
	Architecture string         `json:"architecture"`
}

// Collector batches events and ships them in the background.
type Collector struct {
	enabled       bool
	endpoint      string
	events        []Event
	mu            sync.Mutex
	httpClient    *http.Client
	version       string
	batchSize     int
	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

var (
	globalCollector *Collector
	once            sync.Once
)

// Init initializes the global collector.
func Init(version string, enabled bool) {
	once.Do(func() {
		globalCollector = &Collector{
			enabled:       enabled && !isDisabled(),
			endpoint:      endpoint(),
			events:        make([]Event, 0, 100),
			httpClient:    &http.Client{Timeout: 5 * time.Second},
			version:       version,
			batchSize:     10,
			flushInterval: 30 * time.Second,
			stopChan:      make(chan struct{}),
		}

		if globalCollector.enabled {
			globalCollector.startBackgroundFlush()
		}
	})
}

// RecordQuery records a native query execution.
func RecordQuery(provider string, duration time.Duration, results int, cached bool, err error) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := newEvent("query", provider)
	event.Duration = &duration
	event.Metadata = map[string]any{
		"results": results,
		"cached":  cached,
	}
	if err != nil {
		event.Error = err.Error()
	}
	globalCollector.recordEvent(event)
}

// RecordCache records a cache lookup outcome for a region.
func RecordCache(region string, hit bool) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := newEvent("cache", "")
	event.Metadata = map[string]any{
		"region": region,
		"hit":    hit,
	}
	globalCollector.recordEvent(event)
}

// RecordProcedure records a stored procedure invocation.
func RecordProcedure(provider string, duration time.Duration, err error) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := newEvent("procedure", provider)
	event.Duration = &duration
	if err != nil {
		event.Error = err.Error()
	}
	globalCollector.recordEvent(event)
}

func newEvent(eventType, provider string) Event {
	return Event{
		EventType:    eventType,
		Provider:     provider,
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

// recordEvent adds an event to the collector
func (c *Collector) recordEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)

	if len(c.events) >= c.batchSize {
		go c.flush()
	}
}

// flush sends collected events to the telemetry endpoint
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return
	}

	events := make([]Event, len(c.events))
	copy(events, c.events)
	c.events = c.events[:0]
	c.mu.Unlock()

	go c.sendEvents(events)
}

// sendEvents ships a batch. Failures are swallowed; telemetry must never
// break the application.
func (c *Collector) sendEvents(events []Event) {
	if len(events) == 0 {
		return
	}

	jsonData, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("hydrate-go/%s", c.version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}

// startBackgroundFlush starts a background goroutine to flush events periodically
func (c *Collector) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush()
			case <-c.stopChan:
				c.flush()
				return
			}
		}
	}()
}

// Shutdown stops the collector and flushes remaining events.
func Shutdown() {
	if globalCollector == nil {
		return
	}

	close(globalCollector.stopChan)
	globalCollector.wg.Wait()
	globalCollector.flush()
}

// isDisabled checks the environment and command line for an opt-out.
func isDisabled() bool {
	if os.Getenv("HYDRATE_TELEMETRY_DISABLED") == "1" || os.Getenv("HYDRATE_TELEMETRY_DISABLED") == "true" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "--no-telemetry" {
			return true
		}
	}
	return false
}

// endpoint returns the telemetry endpoint URL.
func endpoint() string {
	if e := os.Getenv("HYDRATE_TELEMETRY_ENDPOINT"); e != "" {
		return e
	}
	return "https://telemetry.hydrate-orm.dev/events"
}

// IsEnabled returns whether telemetry is enabled.
func IsEnabled() bool {
	return globalCollector != nil && globalCollector.enabled
}
