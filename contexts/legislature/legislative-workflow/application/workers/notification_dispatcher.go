package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

const defaultDispatcherGroup = "legislative-workflow-notifications-cg"

// Topics mirror the event types appended by the command use cases.
const (
	topicBillValidated         = "bill.validated"
	topicBillDeclassed         = "bill.declassed"
	topicBillAnalysisCompleted = "bill.analysis_completed"
	topicBillScheduled         = "bill.scheduled"
	topicSessionOpened         = "plenary.session_opened"
	topicSessionClosed         = "plenary.session_closed"
)

// NotificationDispatcher turns workflow events into inbox notifications.
// Bill updates go to the proposer, plenary events to every active deputy.
type NotificationDispatcher struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Notifications ports.NotificationRepository
	Members       ports.MemberDirectory
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

type billEventPayload struct {
	BillID       string `json:"bill_id"`
	Subject      string `json:"subject"`
	Code         string `json:"code"`
	Status       string `json:"status"`
	ProposerID   string `json:"proposer_id"`
	ActorID      string `json:"actor_id"`
	Outcome      string `json:"outcome"`
	Yes          int    `json:"yes"`
	No           int    `json:"no"`
	Abstain      int    `json:"abstain"`
	Observations string `json:"observations"`
}

func (d NotificationDispatcher) Start(ctx context.Context) error {
	logger := application.ResolveLogger(d.Logger)
	if d.Disabled {
		logger.Info("notification dispatcher disabled by configuration",
			"event", "workflow_dispatcher_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(d.ConsumerGroup)
	if group == "" {
		group = defaultDispatcherGroup
	}
	for _, topic := range []string{
		topicBillValidated,
		topicBillDeclassed,
		topicBillAnalysisCompleted,
		topicBillScheduled,
		topicSessionOpened,
		topicSessionClosed,
	} {
		if err := d.Subscriber.Subscribe(ctx, topic, group, d.Handle); err != nil {
			logger.Error("notification dispatcher subscribe failed",
				"event", "workflow_dispatcher_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("notification dispatcher subscriptions active",
		"event", "workflow_dispatcher_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

// Handle processes one delivery. Redelivered events are skipped once they
// have been fully processed; a failure releases the event id so the next
// delivery retries it.
func (d NotificationDispatcher) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(d.Logger)
	now := d.now()
	alreadyProcessed, err := d.Dedup.ReserveEvent(ctx, event.EventID, eventFingerprint(event.EventType, event.Data), now.Add(d.dedupTTL()))
	if err != nil {
		logger.Error("workflow event dedupe failed",
			"event", "workflow_dispatcher_dedupe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("workflow event replay skipped",
			"event", "workflow_dispatcher_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	recipientCount, err := d.deliver(ctx, event, now)
	if err != nil {
		logger.Error("workflow event dispatch failed",
			"event", "workflow_dispatcher_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		if releaseErr := d.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}

	logger.Info("workflow event dispatched",
		"event", "workflow_dispatcher_consumed",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"recipient_count", recipientCount,
	)
	return nil
}

func (d NotificationDispatcher) deliver(ctx context.Context, event ports.EventEnvelope, now time.Time) (int, error) {
	var payload billEventPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return 0, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}

	kind, title, message := describeEvent(event.EventType, payload)
	recipients, err := d.recipients(ctx, event.EventType, payload)
	if err != nil {
		return 0, err
	}
	batch := make([]entities.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		batch = append(batch, entities.Notification{
			NotificationID: notificationID(event.EventID, recipientID),
			RecipientID:    recipientID,
			Kind:           kind,
			Title:          title,
			Message:        message,
			BillID:         payload.BillID,
			Sender:         "legislative-workflow",
			CreatedAt:      now,
		})
	}
	if err := d.Notifications.CreateNotifications(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (d NotificationDispatcher) recipients(ctx context.Context, eventType string, payload billEventPayload) ([]string, error) {
	switch eventType {
	case topicSessionOpened, topicSessionClosed:
		if d.Members == nil {
			return nil, nil
		}
		members, err := d.Members.ListMembers(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(members))
		for _, member := range members {
			if member.Active && member.Role == entities.RoleDeputy {
				out = append(out, member.MemberID)
			}
		}
		return out, nil
	default:
		if strings.TrimSpace(payload.ProposerID) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(payload.ProposerID)}, nil
	}
}

func describeEvent(eventType string, payload billEventPayload) (entities.NotificationKind, string, string) {
	label := strings.TrimSpace(payload.Code)
	if label == "" {
		label = payload.BillID
	}
	switch eventType {
	case topicBillValidated:
		return entities.NotificationKindBillUpdate,
			"Bill validated by the conference",
			fmt.Sprintf("Bill %s (%s) was validated and sent to the study bureau.", label, payload.Subject)
	case topicBillDeclassed:
		message := fmt.Sprintf("Bill %s (%s) was declassed by the conference.", label, payload.Subject)
		if obs := strings.TrimSpace(payload.Observations); obs != "" {
			message += " Observations: " + obs
		}
		return entities.NotificationKindBillUpdate, "Bill declassed", message
	case topicBillAnalysisCompleted:
		return entities.NotificationKindStudyBureau,
			"Study bureau analysis completed",
			fmt.Sprintf("The study bureau finished its analysis of bill %s (%s).", label, payload.Subject)
	case topicBillScheduled:
		return entities.NotificationKindBillUpdate,
			"Bill scheduled for plenary",
			fmt.Sprintf("Bill %s (%s) is on the plenary agenda.", label, payload.Subject)
	case topicSessionOpened:
		return entities.NotificationKindPlenary,
			"Plenary vote open",
			fmt.Sprintf("Voting is open on bill %s (%s).", label, payload.Subject)
	case topicSessionClosed:
		return entities.NotificationKindPlenary,
			"Plenary vote closed",
			fmt.Sprintf("Bill %s (%s) was %s: %d yes, %d no, %d abstain.",
				label, payload.Subject, payload.Outcome, payload.Yes, payload.No, payload.Abstain)
	default:
		return entities.NotificationKindBillUpdate,
			"Bill updated",
			fmt.Sprintf("Bill %s is now %s.", label, payload.Status)
	}
}

func (d NotificationDispatcher) now() time.Time {
	now := time.Now().UTC()
	if d.Clock != nil {
		now = d.Clock.Now().UTC()
	}
	return now
}

func (d NotificationDispatcher) dedupTTL() time.Duration {
	if d.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return d.DedupTTL
}
