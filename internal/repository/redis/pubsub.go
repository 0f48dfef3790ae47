package redis

import (
	"context"
	"encoding/json"
	"time"

	redisx "github.com/kirinyoku/busgo/internal/redis"
	"github.com/redis/go-redis/v9"
)

// BusEvents broadcasts "seats of this bus changed" after bookings, cancellations
// and seat status updates made through this service.
type BusEvents struct {
	rdb     *redis.Client
	channel string
}

func NewBusEvents(rdb *redis.Client) *BusEvents {
	return &BusEvents{
		rdb:     rdb,
		channel: redisx.ChannelBusChanged(),
	}
}

type busChangedMsg struct {
	Type   string `json:"type"`
	BusID  int64  `json:"bus_id"`
	TsUnix int64  `json:"ts_unix"`
}

func (p *BusEvents) PublishBusChanged(ctx context.Context, busID int64) error {
	b, err := json.Marshal(busChangedMsg{
		Type:   "bus_changed",
		BusID:  busID,
		TsUnix: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe calls handler for every change until ctx is done.
func (p *BusEvents) Subscribe(ctx context.Context, handler func(ctx context.Context, busID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reporting readiness
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg busChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.BusID != 0 {
				handler(ctx, msg.BusID)
			}
		}
	}
}
