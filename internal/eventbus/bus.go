package eventbus

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/serialx/hashring"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/log"
	"firestige.xyz/vlanswitch/internal/metrics"
)

// EventBus is a partitioned, non-blocking publish/subscribe queue.
type EventBus interface {
	Publish(event *Event) error
	Subscribe(topic string, handler Handler) error
	Close() error
	GetStats() *Stats
}

// Stats is a snapshot of bus counters.
type Stats struct {
	PublishedCount int64 `json:"published"`
	ProcessedCount int64 `json:"processed"`
	FailedCount    int64 `json:"failed"`
	DroppedCount   int64 `json:"dropped"`
	PartitionCount int   `json:"partitions"`
	QueuedCount    []int `json:"queued"`
}

// InMemoryEventBus hashes each event key onto a consistent-hash ring of
// partitions. Each partition is drained by a single goroutine.
type InMemoryEventBus struct {
	partitions     []*partition
	partitionNodes []string
	hashRing       *hashring.HashRing

	mu          sync.RWMutex // guards subscribers and the closed transition
	subscribers map[string]Handler
	closed      bool

	publishedCount int64
	processedCount int64
	failedCount    int64
	droppedCount   int64
}

// NewInMemoryEventBus starts partitionCount consumers, each with a queue of
// queueSize events. Non-positive arguments fall back to 1.
func NewInMemoryEventBus(partitionCount, queueSize int) *InMemoryEventBus {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	bus := &InMemoryEventBus{
		partitions:     make([]*partition, partitionCount),
		partitionNodes: make([]string, partitionCount),
		subscribers:    make(map[string]Handler),
	}
	for i := 0; i < partitionCount; i++ {
		bus.partitionNodes[i] = "partition-" + strconv.Itoa(i)
	}
	bus.hashRing = hashring.New(bus.partitionNodes)

	for i := 0; i < partitionCount; i++ {
		p := &partition{id: i, queue: make(chan *Event, queueSize)}
		p.done.Add(1)
		bus.partitions[i] = p
		go bus.runPartition(p)
	}
	return bus
}

// Publish enqueues event on the partition owning its key. It never blocks:
// a full partition yields core.ErrQueueFull.
func (b *InMemoryEventBus) Publish(event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.drop(event, "closed")
		return core.ErrBusClosed
	}

	p := b.partitions[b.getPartitionID(event.Key)]
	select {
	case p.queue <- event:
		atomic.AddInt64(&b.publishedCount, 1)
		return nil
	default:
		b.drop(event, "queue_full")
		return fmt.Errorf("partition %d: %w", p.id, core.ErrQueueFull)
	}
}

func (b *InMemoryEventBus) drop(event *Event, reason string) {
	atomic.AddInt64(&b.droppedCount, 1)
	metrics.EventsDroppedTotal.WithLabelValues(event.Topic, reason).Inc()
}

// Subscribe registers handler for topic, replacing any previous one.
func (b *InMemoryEventBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return core.ErrBusClosed
	}
	b.subscribers[topic] = handler

	log.GetLogger().Infof("Subscribed to topic: %s", topic)
	return nil
}

// Close stops accepting events, lets every partition drain what is already
// queued, and waits for the consumers to exit.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, p := range b.partitions {
		close(p.queue)
	}
	b.mu.Unlock()

	for _, p := range b.partitions {
		p.done.Wait()
	}
	log.GetLogger().Info("Event bus closed")
	return nil
}

// GetStats returns a snapshot of the counters and current queue depths.
func (b *InMemoryEventBus) GetStats() *Stats {
	stats := &Stats{
		PublishedCount: atomic.LoadInt64(&b.publishedCount),
		ProcessedCount: atomic.LoadInt64(&b.processedCount),
		FailedCount:    atomic.LoadInt64(&b.failedCount),
		DroppedCount:   atomic.LoadInt64(&b.droppedCount),
		PartitionCount: len(b.partitions),
		QueuedCount:    make([]int, len(b.partitions)),
	}
	for i, p := range b.partitions {
		stats.QueuedCount[i] = len(p.queue)
	}
	return stats
}

// getPartitionID maps key onto the ring; an empty ring falls back to 0.
func (b *InMemoryEventBus) getPartitionID(key string) int {
	node, ok := b.hashRing.GetNode(key)
	if !ok {
		return 0
	}
	for i, n := range b.partitionNodes {
		if n == node {
			return i
		}
	}
	return 0
}

func (b *InMemoryEventBus) handler(topic string) Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscribers[topic]
}

func (b *InMemoryEventBus) runPartition(p *partition) {
	defer p.done.Done()

	logger := log.GetLogger()
	logger.Debugf("Partition %d started", p.id)
	defer logger.Debugf("Partition %d stopped", p.id)

	for event := range p.queue {
		h := b.handler(event.Topic)
		if h == nil {
			logger.Debugf("No handler for topic: %s", event.Topic)
			continue
		}
		if err := h(event); err != nil {
			atomic.AddInt64(&b.failedCount, 1)
			logger.WithField("topic", event.Topic).WithField("key", event.Key).
				Errorf("Failed to handle event in partition %d: %v", p.id, err)
			continue
		}
		atomic.AddInt64(&b.processedCount, 1)
	}
}
