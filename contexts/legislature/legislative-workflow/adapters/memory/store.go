package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message ports.OutboxMessage
	seq     int64
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// state is the transactional part of the store. It implements
// ports.Repository without locking; callers hold Store.mu.
//
// The committed outbox is shared between snapshots and never copied. Rows
// appended inside a transaction are staged and merged by commitOutbox.
type state struct {
	bills       map[string]entities.Bill
	votes       map[string]entities.Vote
	sessions    map[string]entities.PlenarySession
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	staged      []outboxRecord
	outboxSeq   int64
}

func newState() *state {
	return &state{
		bills:       make(map[string]entities.Bill),
		votes:       make(map[string]entities.Vote),
		sessions:    make(map[string]entities.PlenarySession),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

func (st *state) clone() *state {
	next := &state{
		bills:       make(map[string]entities.Bill, len(st.bills)),
		votes:       make(map[string]entities.Vote, len(st.votes)),
		sessions:    make(map[string]entities.PlenarySession, len(st.sessions)),
		idempotency: make(map[string]ports.IdempotencyRecord, len(st.idempotency)),
		outbox:      st.outbox,
		outboxSeq:   st.outboxSeq,
	}
	for key, value := range st.bills {
		next.bills[key] = value
	}
	for key, value := range st.votes {
		next.votes[key] = value
	}
	for key, value := range st.sessions {
		next.sessions[key] = value
	}
	for key, value := range st.idempotency {
		next.idempotency[key] = value
	}
	return next
}

// commitOutbox moves staged rows into the committed outbox.
func (st *state) commitOutbox() {
	for _, row := range st.staged {
		st.outbox[row.message.OutboxID] = row
	}
	st.staged = nil
}

type Store struct {
	mu sync.RWMutex

	state *state

	members       map[string]entities.Member
	notifications map[string]entities.Notification
	eventDedup    map[string]dedupRecord
}

func NewStore(members []entities.Member) *Store {
	store := &Store{
		state:         newState(),
		members:       make(map[string]entities.Member, len(members)),
		notifications: make(map[string]entities.Notification),
		eventDedup:    make(map[string]dedupRecord),
	}
	for _, member := range members {
		store.SetMember(member)
	}
	return store
}

func (s *Store) SetMember(member entities.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member.MemberID = strings.TrimSpace(member.MemberID)
	s.members[member.MemberID] = member
}

// WithinTx runs fn against a private copy of the state and publishes the
// copy only when fn succeeds. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(repo ports.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	working.commitOutbox()
	s.state = working
	return nil
}

func (s *Store) SaveBill(ctx context.Context, bill entities.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveBill(ctx, bill)
}

func (s *Store) GetBill(ctx context.Context, billID string) (entities.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetBill(ctx, billID)
}

func (s *Store) ListBills(ctx context.Context) ([]entities.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListBills(ctx)
}

func (s *Store) ListBillsByStatus(ctx context.Context, status entities.BillStatus) ([]entities.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListBillsByStatus(ctx, status)
}

func (s *Store) ListBillsByProposer(ctx context.Context, proposerID string) ([]entities.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListBillsByProposer(ctx, proposerID)
}

func (s *Store) SaveVote(ctx context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveVote(ctx, vote)
}

func (s *Store) ListVotesByBill(ctx context.Context, billID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListVotesByBill(ctx, billID)
}

func (s *Store) CountVotesByVoter(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CountVotesByVoter(ctx)
}

func (s *Store) GetActiveSession(ctx context.Context) (entities.PlenarySession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetActiveSession(ctx)
}

func (s *Store) SaveSession(ctx context.Context, session entities.PlenarySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveSession(ctx, session)
}

func (s *Store) GetIdempotency(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetIdempotency(ctx, key, now)
}

func (s *Store) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PutIdempotency(ctx, record)
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.AppendOutbox(ctx, envelope); err != nil {
		return err
	}
	s.state.commitOutbox()
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.state.outbox))
	for _, row := range s.state.outbox {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].seq < rows[j].seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

// MarkOutboxPublished drops the row; the memory store keeps no publish
// history.
func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(outboxID)
	if _, ok := s.state.outbox[key]; !ok {
		return domainerrors.ErrOutboxMessageNotFound
	}
	delete(s.state.outbox, key)
	return nil
}

func (s *Store) ListMembers(_ context.Context) ([]entities.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Member, 0, len(s.members))
	for _, member := range s.members {
		items = append(items, member)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].MemberID < items[j].MemberID
	})
	return items, nil
}

func (s *Store) GetMember(_ context.Context, memberID string) (entities.Member, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[strings.TrimSpace(memberID)]
	return member, ok, nil
}

func (s *Store) SaveNotification(_ context.Context, notification entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[strings.TrimSpace(notification.NotificationID)] = notification
	return nil
}

func (s *Store) CreateNotifications(_ context.Context, notifications []entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, notification := range notifications {
		id := strings.TrimSpace(notification.NotificationID)
		if _, exists := s.notifications[id]; exists {
			continue
		}
		s.notifications[id] = notification
	}
	return nil
}

func (s *Store) GetNotification(_ context.Context, notificationID string) (entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notification, ok := s.notifications[strings.TrimSpace(notificationID)]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return notification, nil
}

func (s *Store) ListNotificationsByRecipient(_ context.Context, recipientID string) ([]entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipientID = strings.TrimSpace(recipientID)
	items := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if notification.RecipientID == recipientID {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].NotificationID < items[j].NotificationID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventDedup, strings.TrimSpace(eventID))
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (st *state) SaveBill(_ context.Context, bill entities.Bill) error {
	bill.BillID = strings.TrimSpace(bill.BillID)
	// Votes live in their own map; the bill row never carries them.
	bill.Votes = nil
	st.bills[bill.BillID] = bill
	return nil
}

func (st *state) GetBill(_ context.Context, billID string) (entities.Bill, error) {
	bill, ok := st.bills[strings.TrimSpace(billID)]
	if !ok {
		return entities.Bill{}, domainerrors.ErrBillNotFound
	}
	return bill, nil
}

func (st *state) ListBills(_ context.Context) ([]entities.Bill, error) {
	return st.filterBills(func(entities.Bill) bool { return true }), nil
}

func (st *state) ListBillsByStatus(_ context.Context, status entities.BillStatus) ([]entities.Bill, error) {
	return st.filterBills(func(bill entities.Bill) bool { return bill.Status == status }), nil
}

func (st *state) ListBillsByProposer(_ context.Context, proposerID string) ([]entities.Bill, error) {
	proposerID = strings.TrimSpace(proposerID)
	return st.filterBills(func(bill entities.Bill) bool { return bill.ProposerID == proposerID }), nil
}

// filterBills returns matches newest first.
func (st *state) filterBills(match func(entities.Bill) bool) []entities.Bill {
	items := make([]entities.Bill, 0, len(st.bills))
	for _, bill := range st.bills {
		if match(bill) {
			items = append(items, bill)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].BillID < items[j].BillID
		}
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})
	return items
}

// SaveVote keeps one ballot per voter and bill; a later ballot replaces the
// earlier one.
func (st *state) SaveVote(_ context.Context, vote entities.Vote) error {
	st.votes[voteKey(vote.BillID, vote.VoterID)] = vote
	return nil
}

func (st *state) ListVotesByBill(_ context.Context, billID string) ([]entities.Vote, error) {
	billID = strings.TrimSpace(billID)
	items := make([]entities.Vote, 0)
	for _, vote := range st.votes {
		if vote.BillID == billID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].VoterID < items[j].VoterID
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items, nil
}

func (st *state) CountVotesByVoter(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, vote := range st.votes {
		counts[vote.VoterID]++
	}
	return counts, nil
}

func (st *state) GetActiveSession(_ context.Context) (entities.PlenarySession, bool, error) {
	for _, session := range st.sessions {
		if session.Active {
			return session, true, nil
		}
	}
	return entities.PlenarySession{}, false, nil
}

func (st *state) SaveSession(_ context.Context, session entities.PlenarySession) error {
	session.SessionID = strings.TrimSpace(session.SessionID)
	if session.Active {
		for id, other := range st.sessions {
			if other.Active && id != session.SessionID {
				return domainerrors.ErrSessionAlreadyActive
			}
		}
	}
	st.sessions[session.SessionID] = session
	return nil
}

func (st *state) GetIdempotency(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := st.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (st *state) PutIdempotency(_ context.Context, record ports.IdempotencyRecord) error {
	key := strings.TrimSpace(record.Key)
	if existing, ok := st.idempotency[key]; ok && existing.RequestHash != record.RequestHash {
		if existing.ExpiresAt.IsZero() || time.Now().UTC().Before(existing.ExpiresAt.UTC()) {
			return domainerrors.ErrIdempotencyConflict
		}
	}
	record.Key = key
	st.idempotency[key] = record
	return nil
}

func (st *state) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := st.stagedOrCommitted(outboxID); ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	st.outboxSeq++
	st.staged = append(st.staged, outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		seq: st.outboxSeq,
	})
	return nil
}

func (st *state) stagedOrCommitted(outboxID string) (outboxRecord, bool) {
	for _, row := range st.staged {
		if row.message.OutboxID == outboxID {
			return row, true
		}
	}
	row, ok := st.outbox[outboxID]
	return row, ok
}

func voteKey(billID string, voterID string) string {
	return strings.TrimSpace(billID) + "|" + strings.TrimSpace(voterID)
}
