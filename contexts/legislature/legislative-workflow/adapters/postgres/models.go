package postgresadapter

import (
	"encoding/json"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"

	"gorm.io/datatypes"
)

type billModel struct {
	BillID              string         `gorm:"column:bill_id;primaryKey"`
	Subject             string         `gorm:"column:subject;not null"`
	Code                string         `gorm:"column:code;not null;index"`
	Rationale           string         `gorm:"column:rationale;not null"`
	Attachment          string         `gorm:"column:attachment"`
	Status              string         `gorm:"column:status;not null;index"`
	ProposerID          string         `gorm:"column:proposer_id;not null;index"`
	ProposerName        string         `gorm:"column:proposer_name"`
	ConferenceDecision  datatypes.JSON `gorm:"column:conference_decision"`
	StudyBureauAnalysis datatypes.JSON `gorm:"column:study_bureau_analysis"`
	FinalResult         datatypes.JSON `gorm:"column:final_result"`
	SubmittedAt         time.Time      `gorm:"column:submitted_at;not null"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;not null"`
}

func (billModel) TableName() string {
	return "bills"
}

func billModelFromEntity(bill entities.Bill) (billModel, error) {
	row := billModel{
		BillID:       bill.BillID,
		Subject:      bill.Subject,
		Code:         bill.Code,
		Rationale:    bill.Rationale,
		Attachment:   bill.Attachment,
		Status:       string(bill.Status),
		ProposerID:   bill.ProposerID,
		ProposerName: bill.ProposerName,
		SubmittedAt:  bill.SubmittedAt.UTC(),
		UpdatedAt:    bill.UpdatedAt.UTC(),
	}
	var err error
	if row.ConferenceDecision, err = marshalOptional(bill.ConferenceDecision); err != nil {
		return billModel{}, err
	}
	if row.StudyBureauAnalysis, err = marshalOptional(bill.StudyBureauAnalysis); err != nil {
		return billModel{}, err
	}
	if row.FinalResult, err = marshalOptional(bill.FinalResult); err != nil {
		return billModel{}, err
	}
	return row, nil
}

func (m billModel) toEntity() (entities.Bill, error) {
	bill := entities.Bill{
		BillID:       m.BillID,
		Subject:      m.Subject,
		Code:         m.Code,
		Rationale:    m.Rationale,
		Attachment:   m.Attachment,
		Status:       entities.BillStatus(m.Status),
		ProposerID:   m.ProposerID,
		ProposerName: m.ProposerName,
		SubmittedAt:  m.SubmittedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if len(m.ConferenceDecision) > 0 {
		var decision entities.ConferenceDecision
		if err := json.Unmarshal(m.ConferenceDecision, &decision); err != nil {
			return entities.Bill{}, err
		}
		bill.ConferenceDecision = &decision
	}
	if len(m.StudyBureauAnalysis) > 0 {
		var analysis entities.StudyBureauAnalysis
		if err := json.Unmarshal(m.StudyBureauAnalysis, &analysis); err != nil {
			return entities.Bill{}, err
		}
		bill.StudyBureauAnalysis = &analysis
	}
	if len(m.FinalResult) > 0 {
		var result entities.VoteResult
		if err := json.Unmarshal(m.FinalResult, &result); err != nil {
			return entities.Bill{}, err
		}
		bill.FinalResult = &result
	}
	return bill, nil
}

// marshalOptional stores nil pointers as SQL NULL.
func marshalOptional[T any](value *T) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

type voteModel struct {
	VoteID    string    `gorm:"column:vote_id;primaryKey"`
	BillID    string    `gorm:"column:bill_id;not null;uniqueIndex:idx_votes_bill_voter"`
	VoterID   string    `gorm:"column:voter_id;not null;uniqueIndex:idx_votes_bill_voter"`
	VoterName string    `gorm:"column:voter_name"`
	Value     string    `gorm:"column:value;not null"`
	CastAt    time.Time `gorm:"column:cast_at;not null"`
}

func (voteModel) TableName() string {
	return "votes"
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:    m.VoteID,
		BillID:    m.BillID,
		VoterID:   m.VoterID,
		VoterName: m.VoterName,
		Value:     entities.VoteValue(m.Value),
		CastAt:    m.CastAt.UTC(),
	}
}

// sessionModel carries a partial unique index so the database itself refuses
// a second active session.
type sessionModel struct {
	SessionID string     `gorm:"column:session_id;primaryKey"`
	BillID    string     `gorm:"column:bill_id;not null;index"`
	Active    bool       `gorm:"column:active;not null;uniqueIndex:idx_plenary_sessions_single_active,where:active = true"`
	OpenedBy  string     `gorm:"column:opened_by"`
	OpenedAt  time.Time  `gorm:"column:opened_at;not null"`
	ClosedAt  *time.Time `gorm:"column:closed_at"`
}

func (sessionModel) TableName() string {
	return "plenary_sessions"
}

func (m sessionModel) toEntity() entities.PlenarySession {
	return entities.PlenarySession{
		SessionID: m.SessionID,
		BillID:    m.BillID,
		Active:    m.Active,
		OpenedBy:  m.OpenedBy,
		OpenedAt:  m.OpenedAt.UTC(),
		ClosedAt:  normalizeOptionalTime(m.ClosedAt),
	}
}

type memberModel struct {
	MemberID     string `gorm:"column:member_id;primaryKey"`
	DisplayName  string `gorm:"column:display_name"`
	Role         string `gorm:"column:role;not null"`
	Constituency string `gorm:"column:constituency"`
	Active       bool   `gorm:"column:active;not null"`
}

func (memberModel) TableName() string {
	return "members"
}

func (m memberModel) toEntity() entities.Member {
	return entities.Member{
		MemberID:     m.MemberID,
		DisplayName:  m.DisplayName,
		Role:         entities.Role(m.Role),
		Constituency: m.Constituency,
		Active:       m.Active,
	}
}

type notificationModel struct {
	NotificationID string     `gorm:"column:notification_id;primaryKey"`
	RecipientID    string     `gorm:"column:recipient_id;not null;index"`
	Kind           string     `gorm:"column:kind;not null"`
	Title          string     `gorm:"column:title;not null"`
	Message        string     `gorm:"column:message"`
	BillID         string     `gorm:"column:bill_id"`
	Sender         string     `gorm:"column:sender"`
	MeetingDate    *time.Time `gorm:"column:meeting_date"`
	Read           bool       `gorm:"column:read;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
}

func (notificationModel) TableName() string {
	return "notifications"
}

func notificationModelFromEntity(item entities.Notification) notificationModel {
	return notificationModel{
		NotificationID: item.NotificationID,
		RecipientID:    item.RecipientID,
		Kind:           string(item.Kind),
		Title:          item.Title,
		Message:        item.Message,
		BillID:         item.BillID,
		Sender:         item.Sender,
		MeetingDate:    normalizeOptionalTime(item.MeetingDate),
		Read:           item.Read,
		CreatedAt:      item.CreatedAt.UTC(),
	}
}

func (m notificationModel) toEntity() entities.Notification {
	return entities.Notification{
		NotificationID: m.NotificationID,
		RecipientID:    m.RecipientID,
		Kind:           entities.NotificationKind(m.Kind),
		Title:          m.Title,
		Message:        m.Message,
		BillID:         m.BillID,
		Sender:         m.Sender,
		MeetingDate:    normalizeOptionalTime(m.MeetingDate),
		Read:           m.Read,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash;not null"`
	ResourceID  string    `gorm:"column:resource_id;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "legislative_workflow_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "legislative_workflow_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "legislative_workflow_event_dedup"
}

func allModels() []any {
	return []any{
		&billModel{},
		&voteModel{},
		&sessionModel{},
		&memberModel{},
		&notificationModel{},
		&idempotencyModel{},
		&outboxModel{},
		&eventDedupModel{},
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
