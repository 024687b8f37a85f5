package ports

import (
	"context"
	"encoding/json"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
)

// Repository is the persistence surface the workflow reads and writes. Writes
// that must stay consistent with each other go through UnitOfWork.
type Repository interface {
	SaveBill(ctx context.Context, bill entities.Bill) error
	GetBill(ctx context.Context, billID string) (entities.Bill, error)
	ListBills(ctx context.Context) ([]entities.Bill, error)
	ListBillsByStatus(ctx context.Context, status entities.BillStatus) ([]entities.Bill, error)
	ListBillsByProposer(ctx context.Context, proposerID string) ([]entities.Bill, error)

	SaveVote(ctx context.Context, vote entities.Vote) error
	ListVotesByBill(ctx context.Context, billID string) ([]entities.Vote, error)
	CountVotesByVoter(ctx context.Context) (map[string]int, error)

	GetActiveSession(ctx context.Context) (entities.PlenarySession, bool, error)
	SaveSession(ctx context.Context, session entities.PlenarySession) error

	IdempotencyStore
	OutboxWriter
}

// UnitOfWork runs fn with exclusive access to session and bill state. Nothing
// fn wrote is kept when it returns an error.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

type MemberDirectory interface {
	ListMembers(ctx context.Context) ([]entities.Member, error)
	GetMember(ctx context.Context, memberID string) (entities.Member, bool, error)
}

type NotificationRepository interface {
	SaveNotification(ctx context.Context, notification entities.Notification) error
	// CreateNotifications stores the batch in one write. Ids that already
	// exist are left untouched.
	CreateNotifications(ctx context.Context, notifications []entities.Notification) error
	GetNotification(ctx context.Context, notificationID string) (entities.Notification, error)
	ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]entities.Notification, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ResourceID  string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, record IdempotencyRecord) error
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore records processed event ids. A consumer that fails after
// reserving releases the id so a redelivery is processed again.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

// Metrics receives workflow counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	BillTransitioned(from entities.BillStatus, to entities.BillStatus)
	VoteCast(value entities.VoteValue, replaced bool)
	SessionOpened(billID string)
	SessionClosed(outcome entities.VoteOutcome)
	OperationRejected(operation string, reason string)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
