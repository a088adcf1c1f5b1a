package services

import (
	"context"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/messaging"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

// Routing keys for deposit lifecycle events
const (
	RoutingKeyDepositDetected  = "deposit.detected"
	RoutingKeyDepositConfirmed = "deposit.confirmed"
	RoutingKeyDepositFailed    = "deposit.failed"
)

// NotificationService emits deposit lifecycle events to downstream consumers.
// Delivery is best effort: a failed publish is logged and never fails the
// settlement path that triggered it.
type NotificationService struct {
	publisher messaging.Publisher
	logger    *logger.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(publisher messaging.Publisher, logger *logger.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, logger: logger}
}

// NotifyDepositDetected emits an event when a deposit first lands in pending
func (s *NotificationService) NotifyDepositDetected(ctx context.Context, deposit *entities.Deposit) {
	notification := s.buildNotification(deposit, entities.NotificationDepositDetected,
		"Deposit detected",
		"Your deposit has been detected and is awaiting confirmations")
	s.publish(ctx, RoutingKeyDepositDetected, notification)
}

// NotifyDepositConfirmed emits an event when a deposit is credited
func (s *NotificationService) NotifyDepositConfirmed(ctx context.Context, deposit *entities.Deposit) {
	notification := s.buildNotification(deposit, entities.NotificationDepositConfirmed,
		"Deposit confirmed",
		"Your deposit has been confirmed and credited to your balance")
	s.publish(ctx, RoutingKeyDepositConfirmed, notification)
}

// NotifyDepositFailed emits an event when crediting a deposit failed
func (s *NotificationService) NotifyDepositFailed(ctx context.Context, deposit *entities.Deposit) {
	notification := s.buildNotification(deposit, entities.NotificationDepositFailed,
		"Deposit failed",
		"Your deposit could not be credited, support has been notified")
	s.publish(ctx, RoutingKeyDepositFailed, notification)
}

func (s *NotificationService) buildNotification(deposit *entities.Deposit, notificationType entities.NotificationType, title, message string) *entities.Notification {
	return &entities.Notification{
		UserID:  deposit.UserID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"deposit_id":    deposit.ID.String(),
			"tx_hash":       deposit.TxHash,
			"token_symbol":  deposit.TokenSymbol,
			"chain":         string(deposit.Chain),
			"amount":        deposit.Amount.String(),
			"confirmations": deposit.Confirmations,
			"status":        string(deposit.Status),
		},
	}
}

func (s *NotificationService) publish(ctx context.Context, routingKey string, notification *entities.Notification) {
	if err := s.publisher.Publish(ctx, routingKey, notification); err != nil {
		s.logger.Warn("Failed to publish notification",
			"routing_key", routingKey,
			"user_id", notification.UserID,
			"error", err)
	}
}
