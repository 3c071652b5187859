package worker

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher 把消息以 JSON 的形式发送到 RabbitMQ 的默认交换机
type AMQPPublisher struct {
	channel *amqp.Channel
	timeout time.Duration
}

func NewAMQPPublisher(channel *amqp.Channel, timeout time.Duration) *AMQPPublisher {
	return &AMQPPublisher{
		channel: channel,
		timeout: timeout,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		"",
		queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
