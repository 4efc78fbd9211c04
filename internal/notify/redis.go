package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisDispatcher publishes notifications on a shared channel so whichever replica holds
// the user's stream can deliver it.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
}

func NewRedisDispatcher(client *redis.Client, channel string) *RedisDispatcher {
	return &RedisDispatcher{client: client, channel: channel}
}

func (d *RedisDispatcher) Notify(ctx context.Context, userID, eventType string, payload interface{}) error {
	n, err := newNotification(userID, eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, d.channel, data).Err()
}

// Relay forwards notifications from the shared channel into the local hub until ctx is
// done. ready, if not nil, is closed once the subscription is active.
func Relay(ctx context.Context, client *redis.Client, channel string, hub *Hub, log logrus.FieldLogger, ready chan<- struct{}) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.WithError(err).Warn("dropping malformed notification")
				continue
			}
			hub.Deliver(n.UserID, []byte(msg.Payload))
		}
	}
}
