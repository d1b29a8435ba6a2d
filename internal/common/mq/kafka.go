package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID         = "x-message-id"
	headerTimestamp  = "x-message-ts"
	headerRetryCount = "x-message-retry"
)

// KafkaConfig defines configuration for the Kafka implementation.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"clientID"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
	MaxWait       time.Duration `yaml:"maxWait"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// KafkaQueue implements MessageQueue on top of segmentio/kafka-go.
type KafkaQueue struct {
	cfg KafkaConfig

	writerMu sync.Mutex
	writers  map[string]*kafka.Writer

	subMu   sync.Mutex
	subs    []subscription
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type subscription struct {
	ctx     context.Context
	topic   string
	handler HandlerFunc
}

// NewKafkaQueue creates a Kafka-backed message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return &KafkaQueue{
		cfg:     cfg,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

// Publish publishes a message to the specified topic.
func (q *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if message == nil {
		return fmt.Errorf("message is nil")
	}

	headers := []kafka.Header{
		{Key: headerID, Value: []byte(message.ID)},
		{Key: headerTimestamp, Value: []byte(strconv.FormatInt(message.Timestamp.UnixMilli(), 10))},
		{Key: headerRetryCount, Value: []byte(strconv.Itoa(message.RetryCount))},
	}
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	writer := q.writer(topic)
	return writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
	})
}

func (q *KafkaQueue) writer(topic string) *kafka.Writer {
	q.writerMu.Lock()
	defer q.writerMu.Unlock()
	if w, ok := q.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(q.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: q.cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	q.writers[topic] = w
	return w
}

// Subscribe registers a handler for a topic. Consumption begins on Start.
func (q *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	q.subMu.Lock()
	defer q.subMu.Unlock()
	if q.started {
		return fmt.Errorf("cannot subscribe after Start")
	}
	q.subs = append(q.subs, subscription{ctx: ctx, topic: topic, handler: handler})
	return nil
}

// Start launches one consumer goroutine per subscription.
func (q *KafkaQueue) Start() error {
	q.subMu.Lock()
	defer q.subMu.Unlock()
	if q.started {
		return fmt.Errorf("already started")
	}
	q.started = true

	runCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for _, sub := range q.subs {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  q.cfg.Brokers,
			GroupID:  q.cfg.ConsumerGroup,
			Topic:    sub.topic,
			MinBytes: q.cfg.MinBytes,
			MaxBytes: q.cfg.MaxBytes,
			MaxWait:  q.cfg.MaxWait,
		})
		q.wg.Add(1)
		go q.consume(runCtx, reader, sub)
	}
	return nil
}

func (q *KafkaQueue) consume(ctx context.Context, reader *kafka.Reader, sub subscription) {
	defer q.wg.Done()
	defer reader.Close()

	for {
		kmsg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.cfg.RetryDelay):
			}
			continue
		}

		msg := decodeKafkaMessage(kmsg)
		handlerCtx := sub.ctx
		if handlerCtx == nil || handlerCtx.Err() != nil {
			handlerCtx = ctx
		}

		// Retry in place; at-least-once delivery is preserved because the
		// offset is only committed after the handler gives up or succeeds.
		var handleErr error
		for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
			handleErr = sub.handler(handlerCtx, msg)
			if handleErr == nil {
				break
			}
			msg.RetryCount++
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.cfg.RetryDelay):
			}
		}

		if err := reader.CommitMessages(ctx, kmsg); err != nil && ctx.Err() == nil {
			continue
		}
	}
}

func decodeKafkaMessage(kmsg kafka.Message) *Message {
	msg := &Message{
		ID:        string(kmsg.Key),
		Body:      kmsg.Value,
		Headers:   make(map[string]string),
		Timestamp: kmsg.Time,
	}
	for _, h := range kmsg.Headers {
		switch h.Key {
		case headerID:
			msg.ID = string(h.Value)
		case headerTimestamp:
			if ms, err := strconv.ParseInt(string(h.Value), 10, 64); err == nil {
				msg.Timestamp = time.UnixMilli(ms)
			}
		case headerRetryCount:
			if n, err := strconv.Atoi(string(h.Value)); err == nil {
				msg.RetryCount = n
			}
		default:
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

// Stop cancels consumption and waits for consumer goroutines to exit.
func (q *KafkaQueue) Stop() error {
	q.subMu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.subMu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	return nil
}

// Ping verifies at least one broker is reachable.
func (q *KafkaQueue) Ping(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: q.cfg.DialTimeout, ClientID: q.cfg.ClientID}
	var lastErr error
	for _, broker := range q.cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("no reachable kafka broker: %w", lastErr)
}

// Close stops consumers and closes all writers.
func (q *KafkaQueue) Close() error {
	_ = q.Stop()
	q.writerMu.Lock()
	defer q.writerMu.Unlock()
	var firstErr error
	for _, w := range q.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	q.writers = make(map[string]*kafka.Writer)
	return firstErr
}
