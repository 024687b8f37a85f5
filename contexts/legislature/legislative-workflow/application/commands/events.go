package commands

import (
	"context"
	"encoding/json"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

const (
	EventBillSubmitted         = "bill.submitted"
	EventBillConferenceReview  = "bill.conference_review_opened"
	EventBillValidated         = "bill.validated"
	EventBillDeclassed         = "bill.declassed"
	EventBillAnalysisCompleted = "bill.analysis_completed"
	EventBillScheduled         = "bill.scheduled"
	EventSessionOpened         = "plenary.session_opened"
	EventVoteCast              = "plenary.vote_cast"
	EventSessionClosed         = "plenary.session_closed"
)

func newWorkflowEnvelope(
	eventID string,
	eventType string,
	billID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Events are partitioned by bill so consumers see one bill's history in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "legislative-workflow",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "bill_id",
		PartitionKey:     billID,
		Data:             payload,
	}, nil
}

func appendBillEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	bill entities.Bill,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"bill_id":       bill.BillID,
		"subject":       bill.Subject,
		"code":          bill.Code,
		"status":        string(bill.Status),
		"proposer_id":   bill.ProposerID,
		"proposer_name": bill.ProposerName,
		"occurred_at":   occurredAt.UTC().Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newWorkflowEnvelope(eventID, eventType, bill.BillID, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}
