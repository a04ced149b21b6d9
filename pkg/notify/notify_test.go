package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/observability"
)

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, UserChannel("u1"), BusinessChannel("b1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewRedisNotifier(client)
	require.NoError(t, notifier.Notify(ctx, Notification{
		Type:       TypeMemberAdded,
		BusinessID: "b1",
		UserID:     "u1",
		Message:    "You were added to Acme",
		Data:       map[string]string{"role": "Member"},
	}))

	channels := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-sub.Channel():
			channels[msg.Channel] = true
			var n Notification
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			assert.Equal(t, TypeMemberAdded, n.Type)
			assert.Equal(t, "Member", n.Data["role"])
			assert.False(t, n.Timestamp.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
	}
	assert.True(t, channels[UserChannel("u1")])
	assert.True(t, channels[BusinessChannel("b1")])
}

func TestRedisNotifier_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewRedisNotifier(client).Notify(context.Background(), Notification{UserID: "u1"})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(observability.NewLogger(observability.InfoLevel, &buf))

	require.NoError(t, notifier.Notify(context.Background(), Notification{
		Type:       TypeMemberRemoved,
		BusinessID: "b1",
		UserID:     "u1",
		Message:    "You were removed from Acme",
	}))
	assert.Contains(t, buf.String(), "You were removed from Acme")
	assert.Contains(t, buf.String(), `"notification":"member.removed"`)
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, n Notification) error {
	return errors.New("down")
}

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	m := Multi{failingNotifier{}, NewLogNotifier(observability.NewLogger(observability.InfoLevel, &buf))}

	err := m.Notify(context.Background(), Notification{Message: "hello"})
	assert.ErrorContains(t, err, "down")
	assert.Contains(t, buf.String(), "hello")
}
