package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer читает уведомления из очереди RabbitMQ. Применённые и
// проигнорированные подтверждаются, при ошибке хранилища сообщение
// возвращается в очередь.
type Consumer struct {
	conn     *amqp.Connection
	handler  Handler
	verifier *Verifier
	logger   *zap.Logger
	queue    string

	mu      sync.Mutex
	channel *amqp.Channel
	cancel  context.CancelFunc
	done    chan struct{}
	timeout time.Duration
}

// NewConsumer создаёт консьюмера. verifier может быть nil: очередь
// считается доверенной.
func NewConsumer(conn *amqp.Connection, queue string, handler Handler, verifier *Verifier, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		handler:  handler,
		verifier: verifier,
		logger:   logger.Named("NotificationConsumer"),
		queue:    queue,
		timeout:  10 * time.Second,
	}
}

// Start объявляет очередь и запускает обработку в отдельной горутине.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		return errors.New("notification consumer already started")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	tag := fmt.Sprintf("scenereel-notify-%d", time.Now().UnixNano())
	msgs, err := ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	localCtx, cancel := context.WithCancel(ctx)
	c.channel = ch
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("Notification consumer started", zap.String("queue", c.queue))
	go c.loop(localCtx, msgs, c.done)
	return nil
}

func (c *Consumer) loop(ctx context.Context, msgs <-chan amqp.Delivery, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Delivery channel closed, consumer stops")
				return
			}
			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage обрабатывает одно сообщение и всегда отвечает брокеру.
func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	log := c.logger.With(zap.Uint64("delivery_tag", msg.DeliveryTag))

	if c.verifier != nil {
		sig, _ := msg.Headers[SignatureHeader].(string)
		if err := c.verifier.Verify(msg.Body, sig); err != nil {
			log.Warn("Rejecting notification with bad signature", zap.Error(err))
			c.nack(log, msg, false)
			return
		}
	}

	n, err := Decode(msg.Body)
	if err != nil {
		log.Error("Malformed notification", zap.Error(err), zap.ByteString("body", msg.Body))
		c.nack(log, msg, false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.handler.OnNotification(hctx, n)
	switch {
	case err == nil:
		log.Debug("Notification processed", zap.String("result", string(out.Result)))
	case Ignorable(err):
		log.Info("Notification ignored", zap.Error(err))
	default:
		log.Error("Failed to apply notification, requeueing", zap.Error(err))
		c.nack(log, msg, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack notification", zap.Error(err))
	}
}

func (c *Consumer) nack(log *zap.Logger, msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		log.Error("Failed to nack notification", zap.Error(err))
	}
}

// Stop останавливает обработку и закрывает канал.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return errors.New("notification consumer not started")
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("Timed out waiting for the consumer goroutine")
	}
	err := c.channel.Close()
	c.channel = nil
	c.logger.Info("Notification consumer stopped")
	return err
}
