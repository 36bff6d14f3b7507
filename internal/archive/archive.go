// Package archive publishes broadcast events to a Kafka topic for
// downstream storage and replay.
package archive

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/metrics"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
)

const (
	queueSize    = 1000
	batchSize    = 100
	batchTimeout = time.Second
	writeTimeout = 10 * time.Second
)

// Archiver drains a buffered event queue into Kafka in batches. Enqueue
// never blocks the broadcast path: when the queue is full the event is
// dropped and counted.
type Archiver struct {
	writer *kafka.Writer
	events chan models.Event

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an archiver publishing to the given brokers and topic.
func New(brokers []string, topic string) *Archiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Archiver{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // Partition by card
			BatchSize:    batchSize,
			BatchTimeout: batchTimeout,
			WriteTimeout: writeTimeout,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		events: make(chan models.Event, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue queues one event for archival.
func (a *Archiver) Enqueue(ev models.Event) {
	select {
	case a.events <- ev:
	default:
		metrics.ArchivePublishTotal.WithLabelValues("dropped").Inc()
	}
}

// Start launches the drain worker.
func (a *Archiver) Start() {
	log := logger.WithComponent("archive")
	log.Info().Str("topic", a.writer.Topic).Msg("event archiver started")

	a.wg.Add(1)
	go a.drain()
}

// Stop flushes what is queued and closes the writer.
func (a *Archiver) Stop() {
	a.cancel()
	a.wg.Wait()
	if err := a.writer.Close(); err != nil {
		log := logger.WithComponent("archive")
		log.Error().Err(err).Msg("archive writer close error")
	}
}

// drain batches queued events and publishes them, flushing on size or
// timeout, mirroring the poll cadence loosely.
func (a *Archiver) drain() {
	defer a.wg.Done()

	batch := make([]models.Event, 0, batchSize)
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-a.ctx.Done():
			// Flush remaining batch before exiting
			a.flush(batch)
			return

		case ev := <-a.events:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				a.flush(batch)
				batch = batch[:0]
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
			timer.Reset(batchTimeout)
		}
	}
}

// flush publishes one batch.
func (a *Archiver) flush(batch []models.Event) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("archive")
	start := time.Now()

	messages := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("type", string(ev.Type)).Msg("failed to serialize event")
			metrics.ArchivePublishTotal.WithLabelValues("failed").Inc()
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(strconv.Itoa(ev.ID)),
			Value: data,
		})
	}
	if len(messages) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := a.writer.WriteMessages(ctx, messages...)
	metrics.ArchivePublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Int("batch_size", len(messages)).Msg("failed to publish event batch")
		metrics.ArchivePublishTotal.WithLabelValues("failed").Add(float64(len(messages)))
		return
	}

	metrics.ArchivePublishTotal.WithLabelValues("success").Add(float64(len(messages)))
	log.Debug().Int("batch_size", len(messages)).Msg("event batch archived")
}
