package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "workflow.db")), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db, nil)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestBillRoundTripKeepsDecisionsAndResult(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	bill := entities.Bill{
		BillID:       "bill-1",
		Subject:      "Water code",
		Code:         "WC-1",
		Rationale:    "Drought",
		Status:       entities.BillStatusAdopted,
		ProposerID:   "dep-1",
		ProposerName: "Ada",
		ConferenceDecision: &entities.ConferenceDecision{
			Decision:  entities.ConferenceDecisionValidate,
			DecidedBy: "pres-1",
			DecidedAt: now,
		},
		StudyBureauAnalysis: &entities.StudyBureauAnalysis{
			LegallyCorrect: true,
			Original:       true,
			FundAnalysis:   "sound",
			FormAnalysis:   "clean",
			AnalyzedBy:     "sb-1",
			AnalyzedAt:     now.Add(time.Hour),
		},
		FinalResult: &entities.VoteResult{
			Yes:       3,
			No:        1,
			Total:     4,
			Outcome:   entities.VoteOutcomeAdopted,
			DecidedAt: now.Add(2 * time.Hour),
		},
		SubmittedAt: now,
		UpdatedAt:   now.Add(2 * time.Hour),
	}
	if err := repo.SaveBill(ctx, bill); err != nil {
		t.Fatalf("save bill: %v", err)
	}

	got, err := repo.GetBill(ctx, " bill-1 ")
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if got.Status != entities.BillStatusAdopted || got.ProposerName != "Ada" {
		t.Fatalf("unexpected bill: %+v", got)
	}
	if got.ConferenceDecision == nil || got.ConferenceDecision.Decision != entities.ConferenceDecisionValidate {
		t.Fatalf("expected conference decision, got %+v", got.ConferenceDecision)
	}
	if got.StudyBureauAnalysis == nil || got.StudyBureauAnalysis.FundAnalysis != "sound" {
		t.Fatalf("expected analysis, got %+v", got.StudyBureauAnalysis)
	}
	if got.FinalResult == nil || got.FinalResult.Yes != 3 || got.FinalResult.Outcome != entities.VoteOutcomeAdopted {
		t.Fatalf("expected final result, got %+v", got.FinalResult)
	}

	bill.Subject = "Water code (amended)"
	if err := repo.SaveBill(ctx, bill); err != nil {
		t.Fatalf("resave bill: %v", err)
	}
	items, err := repo.ListBillsByStatus(ctx, entities.BillStatusAdopted)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(items) != 1 || items[0].Subject != "Water code (amended)" {
		t.Fatalf("expected a single updated bill, got %+v", items)
	}

	if _, err := repo.GetBill(ctx, "missing"); !errors.Is(err, domainerrors.ErrBillNotFound) {
		t.Fatalf("expected bill not found, got %v", err)
	}
}

func TestListBillsNewestFirst(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"b1", "b2", "b3"} {
		proposer := "dep-1"
		if id == "b2" {
			proposer = "dep-2"
		}
		if err := repo.SaveBill(ctx, entities.Bill{
			BillID:      id,
			Subject:     "s",
			Code:        "c",
			Rationale:   "r",
			Status:      entities.BillStatusSubmitted,
			ProposerID:  proposer,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := repo.ListBills(ctx)
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(all) != 3 || all[0].BillID != "b3" || all[2].BillID != "b1" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	mine, err := repo.ListBillsByProposer(ctx, "dep-1")
	if err != nil {
		t.Fatalf("list by proposer: %v", err)
	}
	if len(mine) != 2 || mine[0].BillID != "b3" || mine[1].BillID != "b1" {
		t.Fatalf("expected dep-1 bills, got %+v", mine)
	}
}

func TestSaveVoteReplacesPreviousBallot(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	votes := []entities.Vote{
		{VoteID: "v1", BillID: "bill-1", VoterID: "dep-1", Value: entities.VoteValueYes, CastAt: now},
		{VoteID: "v2", BillID: "bill-1", VoterID: "dep-2", Value: entities.VoteValueNo, CastAt: now.Add(time.Second)},
		{VoteID: "v3", BillID: "bill-1", VoterID: "dep-1", Value: entities.VoteValueAbstain, CastAt: now.Add(2 * time.Second)},
	}
	for _, vote := range votes {
		if err := repo.SaveVote(ctx, vote); err != nil {
			t.Fatalf("save vote %s: %v", vote.VoteID, err)
		}
	}

	got, err := repo.ListVotesByBill(ctx, "bill-1")
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one ballot per voter, got %+v", got)
	}
	if got[0].VoterID != "dep-2" || got[1].VoterID != "dep-1" {
		t.Fatalf("expected votes ordered by cast time, got %+v", got)
	}
	if got[1].Value != entities.VoteValueAbstain || got[1].VoteID != "v3" {
		t.Fatalf("expected latest ballot for dep-1, got %+v", got[1])
	}
}

func TestCountVotesByVoter(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, vote := range []entities.Vote{
		{VoteID: "v1", BillID: "bill-1", VoterID: "dep-1", Value: entities.VoteValueYes, CastAt: now},
		{VoteID: "v2", BillID: "bill-2", VoterID: "dep-1", Value: entities.VoteValueNo, CastAt: now},
		{VoteID: "v3", BillID: "bill-1", VoterID: "dep-2", Value: entities.VoteValueAbstain, CastAt: now},
	} {
		if err := repo.SaveVote(ctx, vote); err != nil {
			t.Fatalf("save vote %s: %v", vote.VoteID, err)
		}
	}
	counts, err := repo.CountVotesByVoter(ctx)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if counts["dep-1"] != 2 || counts["dep-2"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestSecondActiveSessionIsRejected(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	if _, ok, err := repo.GetActiveSession(ctx); err != nil || ok {
		t.Fatalf("expected no active session, ok=%v err=%v", ok, err)
	}

	first := entities.PlenarySession{SessionID: "s1", BillID: "bill-1", Active: true, OpenedBy: "pres-1", OpenedAt: now}
	if err := repo.SaveSession(ctx, first); err != nil {
		t.Fatalf("save first session: %v", err)
	}
	second := entities.PlenarySession{SessionID: "s2", BillID: "bill-2", Active: true, OpenedBy: "pres-1", OpenedAt: now}
	if err := repo.SaveSession(ctx, second); !errors.Is(err, domainerrors.ErrSessionAlreadyActive) {
		t.Fatalf("expected session already active, got %v", err)
	}

	closedAt := now.Add(time.Hour)
	first.Active = false
	first.ClosedAt = &closedAt
	if err := repo.SaveSession(ctx, first); err != nil {
		t.Fatalf("close first session: %v", err)
	}
	if err := repo.SaveSession(ctx, second); err != nil {
		t.Fatalf("expected second session after close, got %v", err)
	}

	active, ok, err := repo.GetActiveSession(ctx)
	if err != nil || !ok {
		t.Fatalf("expected active session, ok=%v err=%v", ok, err)
	}
	if active.SessionID != "s2" || active.BillID != "bill-2" {
		t.Fatalf("unexpected active session: %+v", active)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx ports.Repository) error {
		if err := tx.SaveBill(ctx, entities.Bill{
			BillID:      "bill-1",
			Subject:     "s",
			Code:        "c",
			Rationale:   "r",
			Status:      entities.BillStatusSubmitted,
			ProposerID:  "dep-1",
			SubmittedAt: now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.GetBill(ctx, "bill-1"); !errors.Is(err, domainerrors.ErrBillNotFound) {
		t.Fatalf("expected rolled back bill, got %v", err)
	}
}

func TestIdempotencyConflictAndExpiry(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	record := ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", ResourceID: "bill-1", ExpiresAt: now.Add(time.Hour)}
	if err := repo.PutIdempotency(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.PutIdempotency(ctx, record); err != nil {
		t.Fatalf("identical put should be accepted: %v", err)
	}
	conflicting := record
	conflicting.RequestHash = "h2"
	if err := repo.PutIdempotency(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}

	got, ok, err := repo.GetIdempotency(ctx, "k1", now)
	if err != nil || !ok || got.ResourceID != "bill-1" {
		t.Fatalf("expected stored record, got %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := repo.GetIdempotency(ctx, "k1", now.Add(2*time.Hour)); err != nil || ok {
		t.Fatalf("expected expired record, ok=%v err=%v", ok, err)
	}
	if _, ok, err := repo.GetIdempotency(ctx, "k1", now); err != nil || ok {
		t.Fatalf("expected expired record to be deleted, ok=%v err=%v", ok, err)
	}
}

func TestOutboxOrderingAndPublish(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2"} {
		if err := repo.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:      id,
			EventType:    "legislature.bill.submitted",
			OccurredAt:   now.Add(time.Duration(i) * time.Second),
			PartitionKey: "bill-1",
			Data:         json.RawMessage(`{"bill_id":"bill-1"}`),
		}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := repo.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:      "e1",
		EventType:    "legislature.bill.submitted",
		OccurredAt:   now,
		PartitionKey: "bill-1",
		Data:         json.RawMessage(`{"bill_id":"bill-2"}`),
	}); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict on reused event id, got %v", err)
	}

	pending, err := repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "e1" || pending[1].OutboxID != "e2" {
		t.Fatalf("expected e1 then e2, got %+v", pending)
	}
	var envelope ports.EventEnvelope
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if envelope.PartitionKey != "bill-1" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	if err := repo.MarkOutboxPublished(ctx, "e1", now.Add(time.Minute)); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := repo.MarkOutboxPublished(ctx, "missing", now); !errors.Is(err, domainerrors.ErrOutboxMessageNotFound) {
		t.Fatalf("expected outbox not found, got %v", err)
	}
	pending, err = repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "e2" {
		t.Fatalf("expected only e2 pending, got %+v", pending)
	}
}

func TestReserveEventDetectsDuplicates(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	dup, err := repo.ReserveEvent(ctx, "e1", "hash-1", expires)
	if err != nil || dup {
		t.Fatalf("expected first reservation, dup=%v err=%v", dup, err)
	}
	dup, err = repo.ReserveEvent(ctx, "e1", "hash-1", expires)
	if err != nil || !dup {
		t.Fatalf("expected duplicate, dup=%v err=%v", dup, err)
	}
	if _, err := repo.ReserveEvent(ctx, "e1", "hash-2", expires); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict on payload mismatch, got %v", err)
	}
}

func TestReleaseEventReopensReservation(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if _, err := repo.ReserveEvent(ctx, "e1", "hash-1", expires); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.ReleaseEvent(ctx, "e1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	dup, err := repo.ReserveEvent(ctx, "e1", "hash-1", expires)
	if err != nil || dup {
		t.Fatalf("expected a fresh reservation after release, dup=%v err=%v", dup, err)
	}
}

func TestCreateNotificationsSkipsExistingIDs(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	if err := repo.SaveNotification(ctx, entities.Notification{
		NotificationID: "n1", RecipientID: "dep-1", Kind: entities.NotificationKindPlenary,
		Title: "Plenary vote open", Message: "first", Read: true, CreatedAt: now,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := repo.CreateNotifications(ctx, []entities.Notification{
		{NotificationID: "n1", RecipientID: "dep-1", Kind: entities.NotificationKindPlenary, Title: "Plenary vote open", Message: "again", CreatedAt: now},
		{NotificationID: "n2", RecipientID: "dep-2", Kind: entities.NotificationKindPlenary, Title: "Plenary vote open", Message: "first", CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetNotification(ctx, "n1")
	if err != nil || got.Message != "first" || !got.Read {
		t.Fatalf("expected n1 untouched, got %+v err=%v", got, err)
	}
	if _, err := repo.GetNotification(ctx, "n2"); err != nil {
		t.Fatalf("expected n2 stored: %v", err)
	}
	if err := repo.CreateNotifications(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestMembersAndNotifications(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, member := range []entities.Member{
		{MemberID: "dep-2", DisplayName: "Bo", Role: entities.RoleDeputy, Constituency: "South", Active: true},
		{MemberID: "dep-1", DisplayName: "Ada", Role: entities.RoleDeputy, Constituency: "North", Active: true},
	} {
		if err := repo.UpsertMember(ctx, member); err != nil {
			t.Fatalf("upsert %s: %v", member.MemberID, err)
		}
	}
	if err := repo.UpsertMember(ctx, entities.Member{
		MemberID: "dep-2", DisplayName: "Bo", Role: entities.RoleDeputy, Constituency: "South", Active: false,
	}); err != nil {
		t.Fatalf("deactivate dep-2: %v", err)
	}

	members, err := repo.ListMembers(ctx)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 || members[0].MemberID != "dep-1" || members[1].Active {
		t.Fatalf("unexpected members: %+v", members)
	}
	if _, ok, err := repo.GetMember(ctx, "nobody"); err != nil || ok {
		t.Fatalf("expected unknown member, ok=%v err=%v", ok, err)
	}

	meeting := now.Add(48 * time.Hour)
	for i, id := range []string{"n1", "n2"} {
		if err := repo.SaveNotification(ctx, entities.Notification{
			NotificationID: id,
			RecipientID:    "dep-1",
			Kind:           entities.NotificationKindConference,
			Title:          "Conference",
			Message:        "Meeting",
			Sender:         "Speaker",
			MeetingDate:    &meeting,
			CreatedAt:      now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	items, err := repo.ListNotificationsByRecipient(ctx, "dep-1")
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 2 || items[0].NotificationID != "n2" {
		t.Fatalf("expected newest first, got %+v", items)
	}
	if items[0].MeetingDate == nil || !items[0].MeetingDate.Equal(meeting) {
		t.Fatalf("expected meeting date, got %+v", items[0].MeetingDate)
	}

	read := items[0]
	read.Read = true
	if err := repo.SaveNotification(ctx, read); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, err := repo.GetNotification(ctx, "n2")
	if err != nil || !got.Read {
		t.Fatalf("expected read notification, got %+v err=%v", got, err)
	}
	if _, err := repo.GetNotification(ctx, "missing"); !errors.Is(err, domainerrors.ErrNotificationNotFound) {
		t.Fatalf("expected notification not found, got %v", err)
	}
}
