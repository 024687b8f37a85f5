package queries

import (
	"context"
	"sort"
	"strings"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

const recentActivityLimit = 5

type BillQueries struct {
	Bills         ports.Repository
	Members       ports.MemberDirectory
	Notifications ports.NotificationRepository
}

func (q BillQueries) GetBillByID(ctx context.Context, billID string) (entities.Bill, error) {
	bill, err := q.Bills.GetBill(ctx, strings.TrimSpace(billID))
	if err != nil {
		return entities.Bill{}, err
	}
	votes, err := q.Bills.ListVotesByBill(ctx, bill.BillID)
	if err != nil {
		return entities.Bill{}, err
	}
	bill.Votes = votes
	return bill, nil
}

func (q BillQueries) ListBills(ctx context.Context) ([]entities.Bill, error) {
	return q.Bills.ListBills(ctx)
}

func (q BillQueries) GetBillsByStatus(ctx context.Context, rawStatus string) ([]entities.Bill, error) {
	status, ok := entities.ParseBillStatus(rawStatus)
	if !ok {
		return nil, domainerrors.ErrValidation
	}
	return q.Bills.ListBillsByStatus(ctx, status)
}

func (q BillQueries) GetUserBills(ctx context.Context, proposerID string) ([]entities.Bill, error) {
	return q.Bills.ListBillsByProposer(ctx, strings.TrimSpace(proposerID))
}

func (q BillQueries) GetSessionState(ctx context.Context) (entities.SessionState, error) {
	session, found, err := q.Bills.GetActiveSession(ctx)
	if err != nil {
		return entities.SessionState{}, err
	}
	if !found {
		return entities.SessionState{}, nil
	}
	bill, err := q.GetBillByID(ctx, session.BillID)
	if err != nil {
		return entities.SessionState{}, err
	}
	// The session row and the bill are read separately; a bill that already
	// carries its result means the session closed in between.
	if bill.Status.IsTerminal() {
		return entities.SessionState{}, nil
	}
	return entities.SessionState{
		Active:  true,
		Session: session,
		Bill:    bill,
	}, nil
}

// Stats aggregates the dashboard counters. Constituency totals are attributed
// through the proposer's roster entry.
func (q BillQueries) Stats(ctx context.Context) (entities.LegislativeStats, error) {
	bills, err := q.Bills.ListBills(ctx)
	if err != nil {
		return entities.LegislativeStats{}, err
	}
	constituencies := map[string]string{}
	if q.Members != nil {
		members, err := q.Members.ListMembers(ctx)
		if err != nil {
			return entities.LegislativeStats{}, err
		}
		for _, member := range members {
			constituencies[member.MemberID] = member.Constituency
		}
	}

	stats := entities.LegislativeStats{
		TotalBills:          len(bills),
		BillsByStatus:       make(map[entities.BillStatus]int),
		BillsByConstituency: make(map[string]int),
	}
	activity := make([]entities.ActivityItem, 0, len(bills))
	for _, bill := range bills {
		stats.BillsByStatus[bill.Status]++
		switch bill.Status {
		case entities.BillStatusAdopted:
			stats.AdoptedCount++
		case entities.BillStatusRejected:
			stats.RejectedCount++
		case entities.BillStatusDeclassed:
			stats.DeclassedCount++
		}
		if constituency := strings.TrimSpace(constituencies[bill.ProposerID]); constituency != "" {
			stats.BillsByConstituency[constituency]++
		}
		if bill.Status != entities.BillStatusSubmitted {
			activity = append(activity, entities.ActivityItem{
				BillID:      bill.BillID,
				Kind:        activityKind(bill.Status),
				Description: bill.Subject + ": " + string(bill.Status),
				OccurredAt:  bill.UpdatedAt,
			})
		}
	}
	sort.Slice(activity, func(i, j int) bool {
		return activity[i].OccurredAt.After(activity[j].OccurredAt)
	})
	if len(activity) > recentActivityLimit {
		activity = activity[:recentActivityLimit]
	}
	stats.RecentActivity = activity

	session, found, err := q.Bills.GetActiveSession(ctx)
	if err != nil {
		return entities.LegislativeStats{}, err
	}
	if found {
		stats.ActiveSessionBillID = session.BillID
	}
	return stats, nil
}

// ListMembers returns the roster ordered by member id with each member's
// proposed bills and cast ballots counted.
func (q BillQueries) ListMembers(ctx context.Context) ([]entities.MemberActivity, error) {
	if q.Members == nil {
		return []entities.MemberActivity{}, nil
	}
	members, err := q.Members.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := q.Bills.ListBills(ctx)
	if err != nil {
		return nil, err
	}
	proposed := make(map[string]int, len(members))
	for _, bill := range bills {
		proposed[bill.ProposerID]++
	}
	votes, err := q.Bills.CountVotesByVoter(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]entities.MemberActivity, 0, len(members))
	for _, member := range members {
		items = append(items, entities.MemberActivity{
			Member:        member,
			BillsProposed: proposed[member.MemberID],
			VotesCast:     votes[member.MemberID],
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Member.MemberID < items[j].Member.MemberID
	})
	return items, nil
}

func (q BillQueries) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]entities.Notification, error) {
	items, err := q.Notifications.ListNotificationsByRecipient(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return items, nil
	}
	unread := make([]entities.Notification, 0, len(items))
	for _, item := range items {
		if !item.Read {
			unread = append(unread, item)
		}
	}
	return unread, nil
}

func activityKind(status entities.BillStatus) string {
	switch status {
	case entities.BillStatusUnderStudyBureauReview:
		return "bill_validated"
	case entities.BillStatusAdopted, entities.BillStatusRejected:
		return "bill_voted"
	case entities.BillStatusDeclassed:
		return "bill_declassed"
	default:
		return "bill_updated"
	}
}
