package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"assembly/contexts/legislature/legislative-workflow/adapters/memory"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
)

func seededQueries(t *testing.T) (BillQueries, *memory.Store) {
	t.Helper()
	store := memory.NewStore([]entities.Member{
		{MemberID: "dep-1", Role: entities.RoleDeputy, Constituency: "North", Active: true},
		{MemberID: "dep-2", Role: entities.RoleDeputy, Constituency: "South", Active: true},
	})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	bills := []entities.Bill{
		{BillID: "b1", Subject: "Water", ProposerID: "dep-1", Status: entities.BillStatusSubmitted},
		{BillID: "b2", Subject: "Roads", ProposerID: "dep-1", Status: entities.BillStatusDeclassed},
		{BillID: "b3", Subject: "Schools", ProposerID: "dep-2", Status: entities.BillStatusAdopted, FinalResult: &entities.VoteResult{Outcome: entities.VoteOutcomeAdopted}},
		{BillID: "b4", Subject: "Ports", ProposerID: "dep-2", Status: entities.BillStatusRejected, FinalResult: &entities.VoteResult{Outcome: entities.VoteOutcomeRejected}},
		{BillID: "b5", Subject: "Parks", ProposerID: "outsider", Status: entities.BillStatusVotingOpen},
	}
	for i, bill := range bills {
		bill.Code = "LAW-" + bill.BillID
		bill.SubmittedAt = base.Add(time.Duration(i) * time.Hour)
		bill.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.SaveBill(ctx, bill); err != nil {
			t.Fatalf("seed bill: %v", err)
		}
	}
	if err := store.SaveSession(ctx, entities.PlenarySession{SessionID: "s1", BillID: "b5", Active: true, OpenedAt: base}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := store.SaveVote(ctx, entities.Vote{VoteID: "v1", BillID: "b5", VoterID: "dep-1", Value: entities.VoteValueYes, CastAt: base}); err != nil {
		t.Fatalf("seed vote: %v", err)
	}
	return BillQueries{Bills: store, Members: store, Notifications: store}, store
}

func TestStats(t *testing.T) {
	q, _ := seededQueries(t)
	stats, err := q.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBills != 5 {
		t.Fatalf("expected 5 bills, got %d", stats.TotalBills)
	}
	if stats.AdoptedCount != 1 || stats.RejectedCount != 1 || stats.DeclassedCount != 1 {
		t.Fatalf("unexpected outcome counts: %+v", stats)
	}
	if stats.BillsByConstituency["North"] != 2 || stats.BillsByConstituency["South"] != 2 {
		t.Fatalf("unexpected constituency counts: %+v", stats.BillsByConstituency)
	}
	if stats.ActiveSessionBillID != "b5" {
		t.Fatalf("expected active session on b5, got %q", stats.ActiveSessionBillID)
	}
	if len(stats.RecentActivity) != 4 || stats.RecentActivity[0].BillID != "b5" {
		t.Fatalf("expected 4 activity items newest first, got %+v", stats.RecentActivity)
	}
	for _, item := range stats.RecentActivity {
		if item.BillID == "b1" {
			t.Fatalf("submitted bills are not activity")
		}
	}
}

func TestSessionStateAttachesVotes(t *testing.T) {
	q, store := seededQueries(t)
	state, err := q.GetSessionState(context.Background())
	if err != nil {
		t.Fatalf("session state: %v", err)
	}
	if !state.Active || state.Bill.BillID != "b5" || len(state.Bill.Votes) != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}

	closedAt := time.Now()
	_ = store.SaveSession(context.Background(), entities.PlenarySession{SessionID: "s1", BillID: "b5", ClosedAt: &closedAt})
	state, err = q.GetSessionState(context.Background())
	if err != nil || state.Active {
		t.Fatalf("expected inactive state, got %+v err=%v", state, err)
	}
}

func TestGetBillsByStatus(t *testing.T) {
	q, _ := seededQueries(t)
	bills, err := q.GetBillsByStatus(context.Background(), "declassed")
	if err != nil || len(bills) != 1 || bills[0].BillID != "b2" {
		t.Fatalf("expected b2, got %+v err=%v", bills, err)
	}
	if _, err := q.GetBillsByStatus(context.Background(), "shelved"); !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetUserBillsNewestFirst(t *testing.T) {
	q, _ := seededQueries(t)
	bills, err := q.GetUserBills(context.Background(), "dep-1")
	if err != nil {
		t.Fatalf("user bills: %v", err)
	}
	if len(bills) != 2 || bills[0].BillID != "b2" {
		t.Fatalf("expected b2 then b1, got %+v", bills)
	}
}

func TestListNotificationsUnreadOnly(t *testing.T) {
	q, store := seededQueries(t)
	ctx := context.Background()
	now := time.Now().UTC()
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n1", RecipientID: "dep-1", CreatedAt: now})
	_ = store.SaveNotification(ctx, entities.Notification{NotificationID: "n2", RecipientID: "dep-1", Read: true, CreatedAt: now})

	all, _ := q.ListNotifications(ctx, "dep-1", false)
	unread, _ := q.ListNotifications(ctx, "dep-1", true)
	if len(all) != 2 || len(unread) != 1 || unread[0].NotificationID != "n1" {
		t.Fatalf("unexpected listings all=%d unread=%+v", len(all), unread)
	}
}

func TestSessionStateIgnoresSessionWhoseBillIsDecided(t *testing.T) {
	q, store := seededQueries(t)
	ctx := context.Background()
	bill, err := store.GetBill(ctx, "b5")
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	// The close landed between the session read and the bill read.
	bill.Status = entities.BillStatusAdopted
	bill.FinalResult = &entities.VoteResult{Outcome: entities.VoteOutcomeAdopted, Yes: 1}
	_ = store.SaveBill(ctx, bill)

	state, err := q.GetSessionState(ctx)
	if err != nil {
		t.Fatalf("session state: %v", err)
	}
	if state.Active || state.Bill.BillID != "" {
		t.Fatalf("expected no active session for a decided bill, got %+v", state)
	}
}

func TestListMembersCountsBillsAndVotes(t *testing.T) {
	q, store := seededQueries(t)
	ctx := context.Background()
	if err := store.SaveVote(ctx, entities.Vote{VoteID: "v2", BillID: "b3", VoterID: "dep-1", Value: entities.VoteValueNo}); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	members, err := q.ListMembers(ctx)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	first, second := members[0], members[1]
	if first.Member.MemberID != "dep-1" || first.BillsProposed != 2 || first.VotesCast != 2 {
		t.Fatalf("unexpected dep-1 record: %+v", first)
	}
	if second.Member.MemberID != "dep-2" || second.BillsProposed != 2 || second.VotesCast != 0 {
		t.Fatalf("unexpected dep-2 record: %+v", second)
	}
	if second.Member.Constituency != "South" {
		t.Fatalf("expected roster fields carried, got %+v", second.Member)
	}
}
