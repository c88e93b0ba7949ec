package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	publishTimeout = 5 * time.Second

	// retryHeader counts how many times a delivery went through the retry queue.
	retryHeader = "x-diary-retries"
)

// RetryQueue and DeadLetterQueue name the queues that back a main queue.
func RetryQueue(queue string) string      { return queue + ".retry" }
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// DeclareQueues declares the main queue with its retry and dead-letter
// companions. Rejected deliveries go to the dead-letter queue; messages in
// the retry queue expire back into the main queue.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(DeadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(RetryQueue(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", RetryQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterQueue(queue),
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func publish(ctx context.Context, ch *amqp.Channel, queue string, msg amqp.Publishing) error {
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(cctx, "", queue, false, false, msg)
}

func jobPublishing(job DiaryJob) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}, nil
}

// Publisher enqueues diary jobs on RabbitMQ.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

// NewPublisher dials url and declares the queue topology for queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// Dispatch publishes job as a persistent JSON message.
func (p *Publisher) Dispatch(ctx context.Context, job DiaryJob) error {
	msg, err := jobPublishing(job)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return publish(ctx, p.ch, p.queue, msg)
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Consumer executes diary jobs delivered from RabbitMQ.
type Consumer struct {
	Gen         Generator
	Queue       string
	Concurrency int
	// MaxRetries bounds how often a timed-out job is re-queued before it
	// is dead-lettered.
	MaxRetries int
	// RetryDelay is the per-message TTL in the retry queue.
	RetryDelay time.Duration
	Log        zerolog.Logger

	pubMu sync.Mutex
}

// Run consumes from an open connection until ctx is cancelled, then waits
// for in-flight jobs.
func (c *Consumer) Run(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueues(ch, c.Queue); err != nil {
		return err
	}
	n := c.Concurrency
	if n < 1 {
		n = 1
	}
	if err := ch.Qos(n, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.Log.Info().Str("queue", c.Queue).Int("concurrency", n).Msg("diary worker started")

	// in-flight jobs finish after shutdown starts
	jobCtx := context.WithoutCancel(ctx)
	deliveries := make(chan amqp.Delivery, n*2)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			for d := range deliveries {
				c.handle(jobCtx, ch, id, d)
			}
		}(i)
	}

	defer func() {
		close(deliveries)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			c.Log.Info().Msg("diary worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			deliveries <- d
		}
	}
}

// Decision is what to do with a delivery after handling it.
type Decision int

const (
	Ack Decision = iota
	Retry
	DeadLetter
)

// Decide maps a job outcome to a delivery decision.
func (c *Consumer) Decide(err error, retries int) Decision {
	switch {
	case err == nil:
		return Ack
	case Retryable(err) && retries < c.MaxRetries:
		return Retry
	default:
		return DeadLetter
	}
}

func (c *Consumer) handle(ctx context.Context, ch *amqp.Channel, worker int, d amqp.Delivery) {
	log := c.Log.With().Int("worker", worker).Logger()

	var job DiaryJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Warn().Err(err).Msg("bad diary job message")
		_ = d.Nack(false, false)
		return
	}
	if err := job.Validate(); err != nil {
		log.Warn().Err(err).Msg("invalid diary job")
		_ = d.Nack(false, false)
		return
	}

	retries := retriesOf(d.Headers)
	err := Execute(log.WithContext(ctx), c.Gen, job)
	switch c.Decide(err, retries) {
	case Ack:
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Str("uuid", job.UUID).Msg("ack failed")
		}
	case Retry:
		log.Warn().Err(err).Str("uuid", job.UUID).Int("retries", retries).Msg("diary job timed out, retrying")
		if perr := c.requeue(ctx, ch, job, retries+1); perr != nil {
			log.Error().Err(perr).Msg("publish retry")
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
	case DeadLetter:
		log.Error().Err(err).Str("uuid", job.UUID).Str("date", job.Date).Msg("diary job failed")
		_ = d.Nack(false, false)
	}
}

func (c *Consumer) requeue(ctx context.Context, ch *amqp.Channel, job DiaryJob, retries int) error {
	msg, err := jobPublishing(job)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{retryHeader: int32(retries)}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}
	msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	return publish(ctx, ch, RetryQueue(c.Queue), msg)
}

func retriesOf(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
