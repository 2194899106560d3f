package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/config"
	"github.com/spec-kit/abteilung-service/internal/events"
	"github.com/spec-kit/abteilung-service/internal/mail"
)

// NotificationService turns department events into mails.
type NotificationService struct {
	sender mail.Sender
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(sender mail.Sender, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		sender: sender,
		logger: logger,
		cfg:    cfg,
	}
}

// Handle dispatches on the event type. Events without a mail are ignored.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventDepartmentCreated:
		return n.handleDepartmentCreated(ctx, event)
	default:
		n.logger.Debug("no notification for event", zap.String("event_type", string(event.Type)))
		return nil
	}
}

func (n *NotificationService) handleDepartmentCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("DepartmentCreated", zap.Int64("department_id", event.DepartmentID), zap.Any("payload", event.Payload))
	if strings.TrimSpace(n.cfg.EmailTo) == "" {
		return nil
	}

	surname := ""
	if payload, ok := event.Payload.(events.DepartmentCreatedPayload); ok {
		surname = payload.ManagerSurname
	}
	msg := NewDepartmentMessage(event.DepartmentID, surname)
	msg.From = n.cfg.EmailFrom
	msg.To = []string{n.cfg.EmailTo}

	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify department %d: %w", event.DepartmentID, err)
	}
	return nil
}

// NewDepartmentMessage builds the creation mail. A missing surname renders
// as N/A.
func NewDepartmentMessage(departmentID int64, managerSurname string) mail.Message {
	if strings.TrimSpace(managerSurname) == "" {
		managerSurname = "N/A"
	}
	return mail.Message{
		Subject: fmt.Sprintf("New department %d", departmentID),
		Body: fmt.Sprintf("The department with manager <strong>%s</strong> has been created",
			html.EscapeString(managerSurname)),
	}
}
