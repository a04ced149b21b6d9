package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// Type names a notification
type Type string

const (
	TypeMemberAdded       Type = "member.added"
	TypeMemberRemoved     Type = "member.removed"
	TypeMemberRoleChanged Type = "member.role_changed"
	TypeBusinessDeleted   Type = "business.deleted"
	TypeInvitationCreated Type = "invitation.created"
)

// Notification is one message addressed to a user about a business
type Notification struct {
	Type       Type              `json:"type"`
	BusinessID string            `json:"businessId"`
	UserID     string            `json:"userId"`
	ActorID    string            `json:"actorId,omitempty"`
	Message    string            `json:"message"`
	Data       map[string]string `json:"data,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel prefixes used by RedisNotifier
const (
	UserChannelPrefix     = "synergyhub:notifications:user:"
	BusinessChannelPrefix = "synergyhub:notifications:business:"
)

// UserChannel returns the pub/sub channel for a user
func UserChannel(userID string) string {
	return UserChannelPrefix + userID
}

// BusinessChannel returns the pub/sub channel for a business
func BusinessChannel(businessID string) string {
	return BusinessChannelPrefix + businessID
}

// RedisNotifier publishes notifications on Redis pub/sub
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier over client
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify publishes n on the recipient's channel and the business channel
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	pipe := r.client.Pipeline()
	if n.UserID != "" {
		pipe.Publish(ctx, UserChannel(n.UserID), payload)
	}
	if n.BusinessID != "" {
		pipe.Publish(ctx, BusinessChannel(n.BusinessID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.WithFields(map[string]interface{}{
		"notification": string(n.Type),
		"business_id":  n.BusinessID,
		"recipient":    n.UserID,
		"actor_id":     n.ActorID,
	}).Info(n.Message)
	return nil
}

// Multi delivers to every notifier and joins their errors
type Multi []Notifier

// Notify delivers n to every notifier
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
