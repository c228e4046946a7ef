// Package seeder generates synthetic correlated record flows for demos
// and load testing.
package seeder

import (
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// defaultTopics is the flow used when no topic path is configured.
var defaultTopics = []string{"orders.incoming", "orders.validated", "orders.enriched", "orders.settled"}

// Generator produces correlated record flows: each flow shares one
// correlation id and walks a path of topics with increasing timestamps.
type Generator struct {
	topics            []string
	correlationHeader string
	dropHeaderRatio   float64 // fraction of records emitted without the header
}

// NewGenerator creates a generator emitting flows over the given topics.
func NewGenerator(topics []string, correlationHeader string, dropHeaderRatio float64) *Generator {
	if len(topics) == 0 {
		topics = defaultTopics
	}
	if correlationHeader == "" {
		correlationHeader = "correlation-id"
	}
	return &Generator{
		topics:            topics,
		correlationHeader: correlationHeader,
		dropHeaderRatio:   dropHeaderRatio,
	}
}

// Flow generates one correlated flow starting at start. The flow visits a
// random prefix of the topic path (at least two topics when possible) with
// jittered inter-topic latency.
func (g *Generator) Flow(start time.Time) []model.Record {
	correlationID := uuid.New().String()

	hops := len(g.topics)
	if hops > 2 {
		hops = 2 + rand.Intn(hops-1)
	}

	at := start
	records := make([]model.Record, 0, hops)
	for i := 0; i < hops; i++ {
		rec := model.Record{
			Topic:      g.topics[i],
			ReceivedAt: at,
			Headers: map[string]string{
				g.correlationHeader: correlationID,
				"producer":          gofakeit.AppName(),
			},
			Payload: model.Payload{
				Kind: model.PayloadJSON,
				Fields: map[string]any{
					"order_id": gofakeit.UUID(),
					"customer": gofakeit.Username(),
					"amount":   gofakeit.Price(1, 500),
					"source":   gofakeit.IPv4Address(),
				},
			},
		}
		if rand.Float64() < g.dropHeaderRatio {
			delete(rec.Headers, g.correlationHeader)
		}
		records = append(records, rec)

		// 10-500ms jittered hop latency
		at = at.Add(10*time.Millisecond + time.Duration(rand.Int63n(int64(490*time.Millisecond))))
	}
	return records
}

// Topics returns the topic path flows walk.
func (g *Generator) Topics() []string {
	return append([]string(nil), g.topics...)
}
