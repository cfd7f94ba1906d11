package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/facegate/server/internal/facegate/types"
)

// AMQPConfig are the recognized options for the AMQP channel.
type AMQPConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

// AMQPChannel publishes alerts as JSON to a topic exchange, routed by
// "alert.<severity>".  Downstream consumers (dashboards, an SMS bridge)
// subscribe with whatever pattern they care about.
type AMQPChannel struct {
	cfg     AMQPConfig
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewAMQPChannel connects to the broker and declares the exchange.  A broker
// that is unreachable at startup is a hard error — alerting silently
// degrading from the first minute is worse than failing loudly.
func NewAMQPChannel(cfg AMQPConfig) (*AMQPChannel, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp channel: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp channel: declare exchange: %w", err)
	}

	return &AMQPChannel{cfg: cfg, conn: conn, channel: ch}, nil
}

func (c *AMQPChannel) Name() string { return "amqp" }

func (c *AMQPChannel) Send(ctx context.Context, a types.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("amqp channel: marshal: %w", err)
	}

	routingKey := "alert." + string(a.Severity)
	err = c.channel.PublishWithContext(ctx,
		c.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   a.ID,
			Timestamp:   a.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp channel: publish: %w", err)
	}
	return nil
}

// Close releases the AMQP channel and connection.
func (c *AMQPChannel) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
