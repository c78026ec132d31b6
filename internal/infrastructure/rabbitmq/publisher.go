package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
)

var ErrClosed = errors.New("パブリッシャーは終了しています")

// channel は Publisher が使う amqp.Channel の操作
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc は接続とチャネルを開く。テストで差し替える
type dialFunc func(url string) (channel, func() error, error)

// Publisher は予約イベントを耐久キューへ JSON で送信する
// 接続は初回送信時に確立し、送信に失敗したら次回送信時に張り直す
type Publisher struct {
	url   string
	queue string
	dial  dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
	closed    bool
}

// NewPublisher は新しい Publisher を作成する
func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue, dial: dialAMQP}
}

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("RabbitMQ 接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	return ch, conn.Close, nil
}

// Publish はイベントを送信する。メッセージは永続化される
func (p *Publisher) Publish(ctx context.Context, e reservation.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if err := p.connect(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         e.Type,
		MessageId:    e.ReservationID + ":" + e.Type,
		Timestamp:    e.OccurredAt.UTC(),
		Body:         body,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("イベント送信に失敗: %w", err)
	}
	return nil
}

func (p *Publisher) connect() error {
	if p.ch != nil {
		return nil
	}
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	p.ch = ch
	p.closeConn = closeConn
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch = nil
	p.closeConn = nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
