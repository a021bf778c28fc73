package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries before an early flush
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated error logs into counted entries and
// publishes them in batches.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	ctx     context.Context
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	sends   sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config:  config,
		entries: make(map[uint64]*AggregatedLogEntry),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.loop.Add(1)
	go c.run()

	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// Pending reports the number of distinct entries not yet published.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	// json.Marshal sorts map keys, so equal field sets hash equally.
	raw, _ := json.Marshal(fields)

	h := fnv.New64a()
	h.Write([]byte(level))
	h.Write([]byte{0})
	h.Write([]byte(message))
	h.Write([]byte{0})
	h.Write([]byte(caller))
	h.Write([]byte{0})
	h.Write(raw)
	return h.Sum64()
}

func (c *LogCollector) run() {
	defer c.loop.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.ctx.Done():
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 || c.config.Publisher == nil {
		return
	}

	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		batch = append(batch, *entry)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)

	c.sends.Add(1)
	go func() {
		defer c.sends.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.config.PublishTimeout)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			// The logger itself cannot be used here without recursing into the collector.
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch), c.config.Topic, err)
		}
	}()
}

// Close flushes what is left and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.cancel()
	c.loop.Wait()
	c.sends.Wait()
}
