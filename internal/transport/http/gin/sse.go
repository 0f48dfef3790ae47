package httpgin

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

type busChangedEvent struct {
	BusID int64 `json:"busId"`
}

// @Summary  Seat change stream
// @Description Server-sent events; a "bus_changed" event means the seats of
// @Description the bus changed and the seat map should be reloaded.
// @Param    id  path  int  true  "Bus ID"
// @Produce  text/event-stream
// @Router   /buses/{id}/events [get]
func handleBusEvents(events BusSubscriber, keepAlive time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		changed := make(chan struct{}, 1)
		go func() {
			err := events.Subscribe(ctx, func(_ context.Context, id int64) {
				if id != busID {
					return
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			if err != nil {
				cancel()
			}
		}()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		c.SSEvent("ready", busChangedEvent{BusID: busID})
		c.Writer.Flush()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-changed:
				c.SSEvent("bus_changed", busChangedEvent{BusID: busID})
				return true
			case <-ticker.C:
				c.SSEvent("ping", "keepalive")
				return true
			}
		})
	}
}
