package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	// workflowLockKey serializes workflow transactions on Postgres.
	workflowLockKey int64 = 0x6c656769
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates every workflow table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return r.logError("workflow_repo_migrate_failed", err)
	}
	return nil
}

// WithinTx runs fn in one database transaction. On Postgres the transaction
// first takes an advisory lock so check-then-write sequences cannot interleave.
func (r *Repository) WithinTx(ctx context.Context, fn func(repo ports.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", workflowLockKey).Error; err != nil {
				return r.logError("workflow_repo_advisory_lock_failed", err)
			}
		}
		return fn(&Repository{db: tx, logger: r.logger})
	})
}

func (r *Repository) SaveBill(ctx context.Context, bill entities.Bill) error {
	row, err := billModelFromEntity(bill)
	if err != nil {
		return r.logError("workflow_repo_save_bill_encode_failed", err, "bill_id", bill.BillID)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bill_id"}},
		UpdateAll: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("workflow_repo_save_bill_failed", create.Error, "bill_id", bill.BillID)
	}
	return nil
}

func (r *Repository) GetBill(ctx context.Context, billID string) (entities.Bill, error) {
	var row billModel
	err := r.db.WithContext(ctx).
		Where("bill_id = ?", strings.TrimSpace(billID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Bill{}, domainerrors.ErrBillNotFound
		}
		return entities.Bill{}, r.logError("workflow_repo_get_bill_failed", err, "bill_id", strings.TrimSpace(billID))
	}
	bill, err := row.toEntity()
	if err != nil {
		return entities.Bill{}, r.logError("workflow_repo_get_bill_decode_failed", err, "bill_id", row.BillID)
	}
	return bill, nil
}

func (r *Repository) ListBills(ctx context.Context) ([]entities.Bill, error) {
	return r.listBills(ctx, "workflow_repo_list_bills_failed", r.db.WithContext(ctx))
}

func (r *Repository) ListBillsByStatus(ctx context.Context, status entities.BillStatus) ([]entities.Bill, error) {
	return r.listBills(ctx, "workflow_repo_list_bills_by_status_failed",
		r.db.WithContext(ctx).Where("status = ?", string(status)),
	)
}

func (r *Repository) ListBillsByProposer(ctx context.Context, proposerID string) ([]entities.Bill, error) {
	return r.listBills(ctx, "workflow_repo_list_bills_by_proposer_failed",
		r.db.WithContext(ctx).Where("proposer_id = ?", strings.TrimSpace(proposerID)),
	)
}

func (r *Repository) listBills(_ context.Context, event string, query *gorm.DB) ([]entities.Bill, error) {
	var rows []billModel
	if err := query.Order("submitted_at DESC").Order("bill_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(event, err)
	}
	items := make([]entities.Bill, 0, len(rows))
	for _, row := range rows {
		bill, err := row.toEntity()
		if err != nil {
			return nil, r.logError(event, err, "bill_id", row.BillID)
		}
		items = append(items, bill)
	}
	return items, nil
}

// SaveVote upserts on (bill_id, voter_id): a new ballot from the same voter
// replaces the previous one.
func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row := voteModel{
		VoteID:    strings.TrimSpace(vote.VoteID),
		BillID:    strings.TrimSpace(vote.BillID),
		VoterID:   strings.TrimSpace(vote.VoterID),
		VoterName: strings.TrimSpace(vote.VoterName),
		Value:     string(vote.Value),
		CastAt:    vote.CastAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bill_id"}, {Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"vote_id":    row.VoteID,
			"voter_name": row.VoterName,
			"value":      row.Value,
			"cast_at":    row.CastAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_save_vote_failed", create.Error,
			"bill_id", row.BillID,
			"voter_id", row.VoterID,
		)
	}
	return nil
}

func (r *Repository) ListVotesByBill(ctx context.Context, billID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("bill_id = ?", strings.TrimSpace(billID)).
		Order("cast_at ASC").
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_list_votes_failed", err, "bill_id", strings.TrimSpace(billID))
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CountVotesByVoter(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		VoterID string
		Total   int
	}
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("voter_id, COUNT(*) AS total").
		Group("voter_id").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_count_votes_failed", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.VoterID] = row.Total
	}
	return counts, nil
}

func (r *Repository) GetActiveSession(ctx context.Context) (entities.PlenarySession, bool, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PlenarySession{}, false, nil
		}
		return entities.PlenarySession{}, false, r.logError("workflow_repo_get_active_session_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveSession(ctx context.Context, session entities.PlenarySession) error {
	row := sessionModel{
		SessionID: strings.TrimSpace(session.SessionID),
		BillID:    strings.TrimSpace(session.BillID),
		Active:    session.Active,
		OpenedBy:  strings.TrimSpace(session.OpenedBy),
		OpenedAt:  session.OpenedAt.UTC(),
		ClosedAt:  normalizeOptionalTime(session.ClosedAt),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrSessionAlreadyActive
		}
		return r.logError("workflow_repo_save_session_failed", create.Error,
			"session_id", row.SessionID,
			"bill_id", row.BillID,
		)
	}
	return nil
}

func (r *Repository) GetIdempotency(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("workflow_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("workflow_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		ResourceID:  row.ResourceID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResourceID:  strings.TrimSpace(record.ResourceID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("workflow_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.ResourceID != row.ResourceID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("workflow_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("workflow_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("workflow_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxMessageNotFound
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("workflow_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("workflow_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	err := r.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).Error
	if err != nil {
		return r.logError("workflow_repo_release_event_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	return nil
}

// UpsertMember maintains the roster synced from the identity provider.
func (r *Repository) UpsertMember(ctx context.Context, member entities.Member) error {
	row := memberModel{
		MemberID:     strings.TrimSpace(member.MemberID),
		DisplayName:  strings.TrimSpace(member.DisplayName),
		Role:         string(member.Role),
		Constituency: strings.TrimSpace(member.Constituency),
		Active:       member.Active,
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		UpdateAll: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_upsert_member_failed", create.Error, "member_id", row.MemberID)
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context) ([]entities.Member, error) {
	var rows []memberModel
	if err := r.db.WithContext(ctx).Order("member_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_list_members_failed", err)
	}
	items := make([]entities.Member, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetMember(ctx context.Context, memberID string) (entities.Member, bool, error) {
	var row memberModel
	err := r.db.WithContext(ctx).
		Where("member_id = ?", strings.TrimSpace(memberID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Member{}, false, nil
		}
		return entities.Member{}, false, r.logError("workflow_repo_get_member_failed", err,
			"member_id", strings.TrimSpace(memberID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveNotification(ctx context.Context, notification entities.Notification) error {
	row := notificationModelFromEntity(notification)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}},
		UpdateAll: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_save_notification_failed", create.Error,
			"notification_id", row.NotificationID,
		)
	}
	return nil
}

func (r *Repository) CreateNotifications(ctx context.Context, notifications []entities.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	rows := make([]notificationModel, 0, len(notifications))
	for _, notification := range notifications {
		rows = append(rows, notificationModelFromEntity(notification))
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return r.logError("workflow_repo_create_notifications_failed", err,
			"notification_count", len(rows),
		)
	}
	return nil
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	var row notificationModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", strings.TrimSpace(notificationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Notification{}, domainerrors.ErrNotificationNotFound
		}
		return entities.Notification{}, r.logError("workflow_repo_get_notification_failed", err,
			"notification_id", strings.TrimSpace(notificationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]entities.Notification, error) {
	var rows []notificationModel
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", strings.TrimSpace(recipientID)).
		Order("created_at DESC").
		Order("notification_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_list_notifications_failed", err,
			"recipient_id", strings.TrimSpace(recipientID),
		)
	}
	items := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("workflow repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.UnitOfWork = (*Repository)(nil)
var _ ports.MemberDirectory = (*Repository)(nil)
var _ ports.NotificationRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
