package entities

import "time"

type NotificationKind string

const (
	NotificationKindConference  NotificationKind = "conference"
	NotificationKindPlenary     NotificationKind = "plenary"
	NotificationKindBillUpdate  NotificationKind = "bill_update"
	NotificationKindStudyBureau NotificationKind = "study_bureau"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationKindConference, NotificationKindPlenary, NotificationKindBillUpdate, NotificationKindStudyBureau:
		return true
	default:
		return false
	}
}

type Notification struct {
	NotificationID string
	RecipientID    string
	Kind           NotificationKind
	Title          string
	Message        string
	BillID         string
	Sender         string
	MeetingDate    *time.Time
	Read           bool
	CreatedAt      time.Time
}

type ActivityItem struct {
	BillID      string
	Kind        string
	Description string
	OccurredAt  time.Time
}

type LegislativeStats struct {
	TotalBills          int
	BillsByStatus       map[BillStatus]int
	BillsByConstituency map[string]int
	RecentActivity      []ActivityItem
	ActiveSessionBillID string
	AdoptedCount        int
	RejectedCount       int
	DeclassedCount      int
}
