package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/domain/services"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

// SendConvocationCommand convenes the conference or the plenary. An empty
// recipient list addresses every active member.
type SendConvocationCommand struct {
	Actor        entities.Actor
	RecipientIDs []string
	Kind         entities.NotificationKind
	Title        string
	Message      string
	BillID       string
	MeetingDate  *time.Time
}

type MarkNotificationReadCommand struct {
	RecipientID    string
	NotificationID string
}

type NotificationUseCase struct {
	Notifications ports.NotificationRepository
	Members       ports.MemberDirectory
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Metrics       ports.Metrics
	Logger        *slog.Logger
}

func (uc NotificationUseCase) SendConvocation(ctx context.Context, cmd SendConvocationCommand) ([]entities.Notification, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := services.Authorize(cmd.Actor, services.ActionSendConvocation); err != nil {
		return nil, reportFailure(logger, uc.Metrics, "send_convocation", err,
			"actor_id", strings.TrimSpace(cmd.Actor.ID),
			"role", string(cmd.Actor.Role),
		)
	}
	if !cmd.Kind.Valid() || strings.TrimSpace(cmd.Title) == "" || strings.TrimSpace(cmd.Message) == "" {
		return nil, reportFailure(logger, uc.Metrics, "send_convocation", domainerrors.ErrInvalidNotification,
			"actor_id", strings.TrimSpace(cmd.Actor.ID),
			"kind", string(cmd.Kind),
		)
	}

	recipients, err := uc.resolveRecipients(ctx, cmd.RecipientIDs)
	if err != nil {
		return nil, reportFailure(logger, uc.Metrics, "send_convocation", err)
	}

	now := uc.now()
	sender := strings.TrimSpace(cmd.Actor.Name)
	if sender == "" {
		sender = strings.TrimSpace(cmd.Actor.ID)
	}
	sent := make([]entities.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		notificationID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, reportFailure(logger, uc.Metrics, "send_convocation", err)
		}
		sent = append(sent, entities.Notification{
			NotificationID: notificationID,
			RecipientID:    recipientID,
			Kind:           cmd.Kind,
			Title:          strings.TrimSpace(cmd.Title),
			Message:        strings.TrimSpace(cmd.Message),
			BillID:         strings.TrimSpace(cmd.BillID),
			Sender:         sender,
			MeetingDate:    cmd.MeetingDate,
			CreatedAt:      now,
		})
	}
	// Every recipient is convened or none is.
	if err := uc.Notifications.CreateNotifications(ctx, sent); err != nil {
		return nil, reportFailure(logger, uc.Metrics, "send_convocation", err,
			"recipient_count", len(sent),
		)
	}

	logger.Info("convocation sent",
		"event", "workflow_convocation_sent",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
		"kind", string(cmd.Kind),
		"recipient_count", len(sent),
	)
	return sent, nil
}

func (uc NotificationUseCase) MarkRead(ctx context.Context, cmd MarkNotificationReadCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	recipientID := strings.TrimSpace(cmd.RecipientID)
	notification, err := uc.Notifications.GetNotification(ctx, strings.TrimSpace(cmd.NotificationID))
	if err != nil {
		return reportFailure(logger, uc.Metrics, "mark_notification_read", err,
			"notification_id", strings.TrimSpace(cmd.NotificationID),
		)
	}
	// Someone else's notification is reported as missing.
	if recipientID == "" || notification.RecipientID != recipientID {
		return reportFailure(logger, uc.Metrics, "mark_notification_read", domainerrors.ErrNotificationNotFound,
			"notification_id", notification.NotificationID,
			"recipient_id", recipientID,
		)
	}
	if notification.Read {
		return nil
	}
	notification.Read = true
	if err := uc.Notifications.SaveNotification(ctx, notification); err != nil {
		return reportFailure(logger, uc.Metrics, "mark_notification_read", err,
			"notification_id", notification.NotificationID,
		)
	}
	return nil
}

func (uc NotificationUseCase) resolveRecipients(ctx context.Context, requested []string) ([]string, error) {
	seen := make(map[string]struct{}, len(requested))
	recipients := make([]string, 0, len(requested))
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	if len(recipients) > 0 {
		return recipients, nil
	}
	if uc.Members == nil {
		return nil, domainerrors.ErrInvalidNotification
	}
	members, err := uc.Members.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if member.Active {
			recipients = append(recipients, member.MemberID)
		}
	}
	if len(recipients) == 0 {
		return nil, domainerrors.ErrInvalidNotification
	}
	return recipients, nil
}

func (uc NotificationUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
