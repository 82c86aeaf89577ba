package reward

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"battle-service/config"
	"battle-service/internal/constants"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CreditMessage asks the ledger service to credit the winners of a
// finished battle. The ledger consumes it from the reward queue; this
// side only publishes.
type CreditMessage struct {
	RoomID  string   `json:"room_id"`
	UserIDs []string `json:"user_ids"`
	Amount  int      `json:"amount"`
}

type Publisher interface {
	CreditWinners(ctx context.Context, roomID string, userIDs []string, amount int) error
}

type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQPublisher(cfg *config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		constants.RewardQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare reward queue: %w", err)
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: channel,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *RabbitMQPublisher) CreditWinners(ctx context.Context, roomID string, userIDs []string, amount int) error {
	if len(userIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(CreditMessage{
		RoomID:  roomID,
		UserIDs: userIDs,
		Amount:  amount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal credit message: %w", err)
	}

	return p.channel.PublishWithContext(
		ctx,
		"",                        // exchange
		constants.RewardQueueName, // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}
