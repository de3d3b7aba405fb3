package notifier

import (
	"context"
	"encoding/json"
	"errors"

	gateway "github.com/coursebill/billing-api/internal/gateways"
	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/queue"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/coursebill/billing-api/pkg/prom"
)

type EmailProcessor struct {
	client      *gateway.Client
	idempotency *IdempotencyService
}

func NewEmailProcessor(client *gateway.Client, idempotency *IdempotencyService) *EmailProcessor {
	return &EmailProcessor{
		client:      client,
		idempotency: idempotency,
	}
}

func (p *EmailProcessor) GetType() string {
	return "email"
}

// Process hands one queued notification to a mail relay with idempotency guarantees
func (p *EmailProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse notification
	var notification model.EmailNotification
	err := json.Unmarshal(queueMessage.Data, &notification)
	if err != nil {
		logger.Error("Failed to unmarshal notification", "error", err)
		return err // Return error to trigger DLQ move
	}
	if err := notification.Validate(); err != nil {
		logger.Error("Invalid notification payload", "notification_id", notification.ID, "error", err)
		return err
	}

	// Step 2: Acquire processing lock and check idempotency
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, notification.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Notification already delivered - ACK to remove from queue
			logger.Info("Notification already processed, skipping", "notification_id", notification.ID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Max retries exceeded - ACK so the queue moves it to the DLQ
			logger.Error("Max retries exceeded", "notification_id", notification.ID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is processing - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "notification_id", notification.ID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "notification_id", notification.ID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing notification",
		"notification_id", notification.ID,
		"kind", string(notification.Kind),
		"to", notification.To,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Hand the email to a relay
	req := &gateway.SendRequest{
		NotificationID: notification.ID,
		To:             notification.To,
		Subject:        notification.Subject,
		Body:           notification.Body,
		Kind:           string(notification.Kind),
	}

	res, err := p.client.SendEmail(ctx, req)
	if err != nil {
		// Step 4a: Sending failed - mark failure and retry
		logger.Error("Failed to send email", "notification_id", notification.ID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "notification_id", notification.ID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4b: Sending succeeded - mark success
	logger.Info("Email sent",
		"notification_id", notification.ID,
		"to", notification.To,
		"status", string(res.Status),
		"retry_count", procCtx.RetryCount)

	if res.Status == gateway.StatusDelivered {
		if res.DeliveredAt != nil && !notification.CreatedAt.IsZero() {
			prom.AddEmailDeliveryDuration(
				res.DeliveredAt.Sub(notification.CreatedAt).Seconds(),
				string(notification.Kind),
			)
		}

		// Mark as successfully processed (sets 24-hour processed marker)
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "notification_id", notification.ID, "error", markErr)
			// Continue - email was delivered
		}

		return nil // ACK message
	}

	// Relay returned non-delivered status - treat as failure
	logger.Warn("Email not delivered", "notification_id", notification.ID, "status", string(res.Status))
	if markErr := p.idempotency.MarkFailure(ctx, procCtx, errors.New("relay returned non-delivered status")); markErr != nil {
		logger.Error("Failed to mark failure", "notification_id", notification.ID, "error", markErr)
	}
	return errors.New("failed to send notification")
}
