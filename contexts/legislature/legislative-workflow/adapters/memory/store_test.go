package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

func TestWithinTxDiscardsWritesOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(repo ports.Repository) error {
		if err := repo.SaveBill(ctx, entities.Bill{BillID: "bill-1", Status: entities.BillStatusSubmitted}); err != nil {
			return err
		}
		if err := repo.AppendOutbox(ctx, ports.EventEnvelope{EventID: "evt-1", EventType: "bill.submitted"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetBill(ctx, "bill-1"); !errors.Is(err, domainerrors.ErrBillNotFound) {
		t.Fatalf("expected rolled back bill, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected rolled back outbox, got %d rows", len(pending))
	}
}

func TestSaveSessionRejectsSecondActive(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := store.SaveSession(ctx, entities.PlenarySession{SessionID: "s1", BillID: "b1", Active: true, OpenedAt: now}); err != nil {
		t.Fatalf("save first session: %v", err)
	}
	err := store.SaveSession(ctx, entities.PlenarySession{SessionID: "s2", BillID: "b2", Active: true, OpenedAt: now})
	if !errors.Is(err, domainerrors.ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}

	closedAt := now
	if err := store.SaveSession(ctx, entities.PlenarySession{SessionID: "s1", BillID: "b1", OpenedAt: now, ClosedAt: &closedAt}); err != nil {
		t.Fatalf("close first session: %v", err)
	}
	if err := store.SaveSession(ctx, entities.PlenarySession{SessionID: "s2", BillID: "b2", Active: true, OpenedAt: now}); err != nil {
		t.Fatalf("open after close: %v", err)
	}
	active, found, _ := store.GetActiveSession(ctx)
	if !found || active.SessionID != "s2" {
		t.Fatalf("expected s2 active, got %+v found=%v", active, found)
	}
}

func TestSaveBillDropsVotesAndVotesAreKeyedByVoter(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	now := time.Now().UTC()
	bill := entities.Bill{BillID: "b1", Status: entities.BillStatusVotingOpen, Votes: []entities.Vote{{VoteID: "x"}}}
	if err := store.SaveBill(ctx, bill); err != nil {
		t.Fatalf("save bill: %v", err)
	}
	stored, _ := store.GetBill(ctx, "b1")
	if len(stored.Votes) != 0 {
		t.Fatalf("votes must live outside the bill record")
	}

	_ = store.SaveVote(ctx, entities.Vote{VoteID: "v1", BillID: "b1", VoterID: "d1", Value: entities.VoteValueNo, CastAt: now})
	_ = store.SaveVote(ctx, entities.Vote{VoteID: "v2", BillID: "b1", VoterID: "d1", Value: entities.VoteValueYes, CastAt: now.Add(time.Second)})
	votes, _ := store.ListVotesByBill(ctx, "b1")
	if len(votes) != 1 || votes[0].Value != entities.VoteValueYes {
		t.Fatalf("expected single replaced vote, got %+v", votes)
	}
}

func TestOutboxOrderAndPublish(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for _, id := range []string{"evt-b", "evt-a", "evt-c"} {
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{EventID: id, EventType: "bill.submitted"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	pending, _ := store.ListPendingOutbox(ctx, 2)
	if len(pending) != 2 || pending[0].OutboxID != "evt-b" || pending[1].OutboxID != "evt-a" {
		t.Fatalf("expected insertion order, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "evt-b", time.Now()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 2 || pending[0].OutboxID != "evt-a" {
		t.Fatalf("expected evt-a first after publish, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrOutboxMessageNotFound) {
		t.Fatalf("expected ErrOutboxMessageNotFound, got %v", err)
	}
}

func TestIdempotencyConflictAndExpiry(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	now := time.Now().UTC()
	record := ports.IdempotencyRecord{Key: "k", RequestHash: "h1", ResourceID: "b1", ExpiresAt: now.Add(time.Hour)}
	if err := store.PutIdempotency(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	record.RequestHash = "h2"
	if err := store.PutIdempotency(ctx, record); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, found, _ := store.GetIdempotency(ctx, "k", now.Add(2*time.Hour)); found {
		t.Fatalf("expired record must not be found")
	}
}

func TestReserveEvent(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	seen, err := store.ReserveEvent(ctx, "evt-1", "hash", expires)
	if err != nil || seen {
		t.Fatalf("first reservation: seen=%v err=%v", seen, err)
	}
	seen, err = store.ReserveEvent(ctx, "evt-1", "hash", expires)
	if err != nil || !seen {
		t.Fatalf("second reservation: seen=%v err=%v", seen, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-1", "other", expires); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict on payload mismatch, got %v", err)
	}
}

func TestNotificationsNewestFirst(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	now := time.Now().UTC()
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n1", RecipientID: "d1", CreatedAt: now})
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n2", RecipientID: "d1", CreatedAt: now.Add(time.Minute)})
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n3", RecipientID: "d2", CreatedAt: now})
	items, _ := store.ListNotificationsByRecipient(ctx, "d1")
	if len(items) != 2 || items[0].NotificationID != "n2" {
		t.Fatalf("expected n2 then n1, got %+v", items)
	}
}

func TestOutboxCommitsWithTxAndDropsPublishedRows(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for _, id := range []string{"evt-1", "evt-2"} {
		err := store.WithinTx(ctx, func(repo ports.Repository) error {
			return repo.AppendOutbox(ctx, ports.EventEnvelope{EventID: id, EventType: "bill.submitted"})
		})
		if err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	err := store.WithinTx(ctx, func(repo ports.Repository) error {
		return repo.AppendOutbox(ctx, ports.EventEnvelope{EventID: "evt-1", EventType: "bill.validated"})
	})
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict for a reused committed id, got %v", err)
	}

	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 2 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected committed rows in order, got %+v", pending)
	}
	for _, row := range pending {
		if err := store.MarkOutboxPublished(ctx, row.OutboxID, time.Now()); err != nil {
			t.Fatalf("mark %s: %v", row.OutboxID, err)
		}
	}
	if remaining := len(store.state.outbox); remaining != 0 {
		t.Fatalf("expected published rows to be dropped, got %d", remaining)
	}

	// Later transactions no longer carry the published rows.
	if err := store.WithinTx(ctx, func(repo ports.Repository) error {
		return repo.SaveBill(ctx, entities.Bill{BillID: "bill-1"})
	}); err != nil {
		t.Fatalf("save bill: %v", err)
	}
	if remaining := len(store.state.outbox); remaining != 0 {
		t.Fatalf("expected empty outbox after unrelated tx, got %d", remaining)
	}
}

func TestCreateNotificationsKeepsExistingRows(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n1", RecipientID: "d1", Title: "first", Read: true})

	err := store.CreateNotifications(ctx, []entities.Notification{
		{NotificationID: "n1", RecipientID: "d1", Title: "again"},
		{NotificationID: "n2", RecipientID: "d1", Title: "second"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	existing, _ := store.GetNotification(ctx, "n1")
	if existing.Title != "first" || !existing.Read {
		t.Fatalf("expected n1 untouched, got %+v", existing)
	}
	if _, err := store.GetNotification(ctx, "n2"); err != nil {
		t.Fatalf("expected n2 stored: %v", err)
	}
}

func TestReleaseEventAllowsReprocessing(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	if seen, _ := store.ReserveEvent(ctx, "evt-1", "hash", expires); seen {
		t.Fatalf("first reservation must not be a replay")
	}
	if err := store.ReleaseEvent(ctx, "evt-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if seen, _ := store.ReserveEvent(ctx, "evt-1", "hash", expires); seen {
		t.Fatalf("released event must be processed again")
	}
}
