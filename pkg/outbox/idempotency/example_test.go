package idempotency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
)

func ExampleMarker() {
	mr, _ := miniredis.Run()
	defer mr.Close()
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer raw.Close()

	marker, _ := idempotency.NewMarker(redis.NewFromClient(raw), 7*24*time.Hour)
	ctx := context.Background()
	const eventID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	for i := 0; i < 2; i++ {
		if done, _ := marker.Done(ctx, "dispatcher", eventID); done {
			fmt.Println("redelivery, ack without dispatching")
			continue
		}
		fmt.Println("first delivery, dispatching")
		_ = marker.Mark(ctx, "dispatcher", eventID)
	}
	// Output:
	// first delivery, dispatching
	// redelivery, ack without dispatching
}
