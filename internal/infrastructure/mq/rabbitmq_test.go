package mq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ssoserver/user-directory/internal/core/domain"
)

func TestNewPublishing(t *testing.T) {
	event := domain.UserEvent{
		Type:       domain.EventUserCreated,
		UserID:     "u1",
		Email:      "a@x.com",
		Role:       domain.RoleFinance,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := newPublishing(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ContentType != "application/json" {
		t.Errorf("content type: got %q", msg.ContentType)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Error("messages must be persistent")
	}
	if msg.Type != "user.created" {
		t.Errorf("type: want %q, got %q", "user.created", msg.Type)
	}
	if msg.Headers["user_id"] != "u1" {
		t.Errorf("user_id header: got %v", msg.Headers["user_id"])
	}

	var decoded domain.UserEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.UserID != "u1" || decoded.Email != "a@x.com" {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestNewPublisher_RequiresConfig(t *testing.T) {
	if _, err := NewPublisher(Config{Exchange: "user.events"}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := NewPublisher(Config{URL: "amqp://localhost"}); err == nil {
		t.Error("expected error for missing exchange")
	}
}
