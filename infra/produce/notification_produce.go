package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MintExchange          = "mint.exchange"
	MintOutcomeQueue      = "mint.outcome"
	MintOutcomeRoutingKey = "mint.outcome"
)

// NotificationService publishes mint outcome events so downstream
// consumers (email notifier, dashboards) can react without polling the
// job table.
type NotificationService struct {
	channel *amqp.Channel
}

type MintOutcomeMessage struct {
	MintID            string `json:"mint_id"`
	CardType          string `json:"card_type"`
	Recipient         string `json:"recipient"`
	Status            string `json:"status"`
	TransactionDigest string `json:"transaction_digest,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	RetryCount        int    `json:"retry_count"`
	Timestamp         int64  `json:"timestamp"`
}

func InitNotificationService(channel *amqp.Channel) *NotificationService {
	service := &NotificationService{
		channel: channel,
	}

	err := channel.ExchangeDeclare(
		MintExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Mint exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		MintOutcomeQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare Mint outcome queue: " + err.Error())
	}

	err = channel.QueueBind(
		MintOutcomeQueue,
		MintOutcomeRoutingKey,
		MintExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Mint outcome queue: " + err.Error())
	}

	return service
}

func (s *NotificationService) PublishMintOutcome(ctx context.Context, message MintOutcomeMessage) error {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		MintExchange,
		MintOutcomeRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
