// Package events publishes cart activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopic = "storefront.cart"

	EventCartChanged = "cart.changed"
	anonymousKey     = "anonymous"
)

type CartChanged struct {
	Type       string            `json:"type"`
	EventID    string            `json:"eventId"`
	Principal  string            `json:"principal"`
	Items      []domain.LineItem `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	ItemCount  int               `json:"itemCount"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PrincipalFunc names the current user, or "" when anonymous.
type PrincipalFunc func() string

type Publisher struct {
	writer       MessageWriter
	writeTimeout time.Duration

	mu     sync.Mutex
	queue  chan kafka.Message
	closed bool
	wg     sync.WaitGroup

	unsubscribe func()
}

func NewPublisher(topic string, brokers ...string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, 64)
}

func newPublisher(w MessageWriter, buffer int) *Publisher {
	return &Publisher{
		writer:       w,
		writeTimeout: 5 * time.Second,
		queue:        make(chan kafka.Message, buffer),
	}
}

// Attach subscribes to the cart. Each notification is queued without
// blocking; a full queue drops the event.
func (p *Publisher) Attach(store *cart.Store, principal PrincipalFunc) {
	p.unsubscribe = store.Subscribe(func(items []domain.LineItem) {
		name := ""
		if principal != nil {
			name = principal()
		}
		p.Publish(name, items)
	})
}

func (p *Publisher) Publish(principal string, items []domain.LineItem) {
	msg, err := newMessage(principal, items)
	if err != nil {
		log.Printf("failed to marshal cart event: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		log.Printf("cart event queue full, dropping event for %s", msg.Key)
	}
}

// Start runs the delivery loop until Close or ctx is done.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case msg, ok := <-p.queue:
				if !ok {
					return
				}
				p.write(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("failed to publish cart event key = %s with error %v", msg.Key, err)
	}
}

// Close detaches from the cart, delivers what is queued and closes the writer.
func (p *Publisher) Close() error {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}

func newMessage(principal string, items []domain.LineItem) (kafka.Message, error) {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	if items == nil {
		items = []domain.LineItem{}
	}

	event := CartChanged{
		Type:       EventCartChanged,
		EventID:    uuid.NewString(),
		Principal:  principal,
		Items:      items,
		Total:      domain.Total(items),
		ItemCount:  units,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	key := principal
	if key == "" {
		key = anonymousKey
	}
	return kafka.Message{
		Key:   []byte(key), // per-user ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCartChanged)},
		},
	}, nil
}
