// Package events публикует события учёта в Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/usage"
)

const (
	TypeUsageCommitted = "usage.committed"
	TypeStockLow       = "stock.low"
)

// Writer: то подмножество kafka.Writer, которое нам нужно (подменяется в тестах).
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type UsageCommitted struct {
	EntryID         string    `json:"entry_id"`
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	MaterialID      string    `json:"material_id"`
	MaterialName    string    `json:"material_name"`
	MachineID       string    `json:"machine_id"`
	Amount          string    `json:"amount"`
	Price           string    `json:"price"`
	Duration        string    `json:"duration"`
	UsesOwnMaterial bool      `json:"uses_own_material"`
	NewStock        string    `json:"new_stock"`
	Timestamp       time.Time `json:"timestamp"`
}

type StockLow struct {
	MaterialID string `json:"material_id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Stock      string `json:"stock"`
	Threshold  string `json:"threshold"`
}

type Publisher struct {
	writer Writer
}

var _ usage.Listener = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &Publisher{writer: w}
}

func NewPublisherWithWriter(w Writer) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) UsageCommitted(ctx context.Context, res usage.CommitResult) error {
	e := res.Entry
	return p.publish(ctx, TypeUsageCommitted, e.MaterialID, UsageCommitted{
		EntryID:         e.ID,
		UserID:          e.UserID,
		UserName:        e.UserName,
		MaterialID:      e.MaterialID,
		MaterialName:    e.MaterialName,
		MachineID:       e.MachineID,
		Amount:          e.Amount.String(),
		Price:           e.Price.StringFixed(2),
		Duration:        e.Duration.String(),
		UsesOwnMaterial: e.UsesOwnMaterial,
		NewStock:        res.NewStock.String(),
		Timestamp:       e.Timestamp,
	})
}

func (p *Publisher) StockLow(ctx context.Context, m materials.Material) error {
	return p.publish(ctx, TypeStockLow, m.ID, StockLow{
		MaterialID: m.ID,
		Name:       m.Name,
		Unit:       m.Unit,
		Stock:      m.Stock.String(),
		Threshold:  m.LowStockThreshold.String(),
	})
}

// publish: ключ сообщения id материала, чтобы события одного материала шли по порядку.
func (p *Publisher) publish(ctx context.Context, eventType, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(eventType)}},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
