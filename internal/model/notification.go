package model

import (
	"errors"
	"time"
)

// NotificationKind tells the mail pipeline which template produced the email.
type NotificationKind string

const (
	NotificationRentalReminder NotificationKind = "rental_reminder"
	NotificationMonthlyReport  NotificationKind = "monthly_report"
)

// EmailNotification is the unit of work on the notification queue. The ID is
// deterministic per logical event, so re-running a job republishes the same
// IDs and the consumer-side idempotency markers drop the duplicates.
type EmailNotification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	To        string           `json:"to"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n EmailNotification) Validate() error {
	if n.ID == "" {
		return errors.New("id is required")
	}
	if n.To == "" {
		return errors.New("recipient is required")
	}
	if n.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}
