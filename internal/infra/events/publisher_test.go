package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/usage"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishUsageCommitted(t *testing.T) {
	fw := &fakeWriter{}
	p := NewPublisherWithWriter(fw)
	at := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

	err := p.UsageCommitted(context.Background(), usage.CommitResult{
		Entry: usagelog.Entry{
			ID: "e1", UserID: "u1", UserName: "Ada", MaterialID: "m1", MaterialName: "PLA",
			MachineID: "p1", Amount: decimal.NewFromInt(3), Price: decimal.NewFromInt(15),
			Duration: decimal.Zero, Timestamp: at,
		},
		NewStock: decimal.NewFromInt(7),
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "m1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeUsageCommitted, string(msg.Headers[0].Value))

	var got UsageCommitted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "15.00", got.Price)
	assert.Equal(t, "7", got.NewStock)
	assert.True(t, at.Equal(got.Timestamp))
}

func TestPublishStockLow(t *testing.T) {
	fw := &fakeWriter{}
	p := NewPublisherWithWriter(fw)

	require.NoError(t, p.StockLow(context.Background(), materials.Material{
		ID: "m2", Name: "Acrylic", Unit: "sheet",
		Stock: decimal.NewFromInt(1), LowStockThreshold: decimal.NewFromInt(3),
	}))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, TypeStockLow, string(fw.msgs[0].Headers[0].Value))

	var got StockLow
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	assert.Equal(t, "Acrylic", got.Name)
	assert.Equal(t, "3", got.Threshold)
}
