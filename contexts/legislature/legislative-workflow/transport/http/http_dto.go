package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Identity is the caller as asserted by the gateway headers.
type Identity struct {
	UserID   string
	UserName string
	Role     string
}

type SubmitBillRequest struct {
	Subject    string `json:"subject"`
	Code       string `json:"code"`
	Rationale  string `json:"rationale"`
	Attachment string `json:"attachment,omitempty"`
}

type ConferenceDecisionRequest struct {
	Decision     string `json:"decision"`
	Observations string `json:"observations,omitempty"`
}

type AnalysisRequest struct {
	LegallyCorrect bool   `json:"legally_correct"`
	Original       bool   `json:"original"`
	FundAnalysis   string `json:"fund_analysis"`
	FormAnalysis   string `json:"form_analysis"`
	Observations   string `json:"observations,omitempty"`
}

type OpenSessionRequest struct {
	BillID string `json:"bill_id"`
}

type CastVoteRequest struct {
	Value string `json:"value"`
}

type ConvocationRequest struct {
	RecipientIDs []string   `json:"recipient_ids,omitempty"`
	Kind         string     `json:"kind"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	BillID       string     `json:"bill_id,omitempty"`
	MeetingDate  *time.Time `json:"meeting_date,omitempty"`
}

type ConferenceDecisionResponse struct {
	Decision     string    `json:"decision"`
	DecidedBy    string    `json:"decided_by"`
	DecidedAt    time.Time `json:"decided_at"`
	Observations string    `json:"observations,omitempty"`
}

type AnalysisResponse struct {
	LegallyCorrect bool      `json:"legally_correct"`
	Original       bool      `json:"original"`
	FundAnalysis   string    `json:"fund_analysis"`
	FormAnalysis   string    `json:"form_analysis"`
	Observations   string    `json:"observations,omitempty"`
	AnalyzedBy     string    `json:"analyzed_by"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

type VoteResultResponse struct {
	Yes       int       `json:"yes"`
	No        int       `json:"no"`
	Abstain   int       `json:"abstain"`
	Total     int       `json:"total"`
	Outcome   string    `json:"outcome"`
	DecidedAt time.Time `json:"decided_at"`
}

type VoteResponse struct {
	VoteID    string    `json:"vote_id"`
	BillID    string    `json:"bill_id"`
	VoterID   string    `json:"voter_id"`
	VoterName string    `json:"voter_name,omitempty"`
	Value     string    `json:"value"`
	CastAt    time.Time `json:"cast_at"`
	Replaced  bool      `json:"replaced,omitempty"`
}

type BillResponse struct {
	BillID              string                      `json:"bill_id"`
	Subject             string                      `json:"subject"`
	Code                string                      `json:"code"`
	Rationale           string                      `json:"rationale"`
	Attachment          string                      `json:"attachment,omitempty"`
	Status              string                      `json:"status"`
	ProposerID          string                      `json:"proposer_id"`
	ProposerName        string                      `json:"proposer_name,omitempty"`
	ConferenceDecision  *ConferenceDecisionResponse `json:"conference_decision,omitempty"`
	StudyBureauAnalysis *AnalysisResponse           `json:"study_bureau_analysis,omitempty"`
	FinalResult         *VoteResultResponse         `json:"final_result,omitempty"`
	Votes               []VoteResponse              `json:"votes,omitempty"`
	SubmittedAt         time.Time                   `json:"submitted_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Replayed            bool                        `json:"replayed,omitempty"`
}

type BillListResponse struct {
	Items []BillResponse `json:"items"`
}

type SessionResponse struct {
	SessionID string     `json:"session_id"`
	BillID    string     `json:"bill_id"`
	Active    bool       `json:"active"`
	OpenedBy  string     `json:"opened_by"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type SessionStateResponse struct {
	Active  bool             `json:"active"`
	Session *SessionResponse `json:"session,omitempty"`
	Bill    *BillResponse    `json:"bill,omitempty"`
}

type OpenSessionResponse struct {
	Session SessionResponse `json:"session"`
	Bill    BillResponse    `json:"bill"`
}

type CloseSessionResponse struct {
	Result  VoteResultResponse `json:"result"`
	Bill    BillResponse       `json:"bill"`
	Session SessionResponse    `json:"session"`
}

type ActivityResponse struct {
	BillID      string    `json:"bill_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type StatsResponse struct {
	TotalBills          int                `json:"total_bills"`
	BillsByStatus       map[string]int     `json:"bills_by_status"`
	BillsByConstituency map[string]int     `json:"bills_by_constituency"`
	RecentActivity      []ActivityResponse `json:"recent_activity"`
	ActiveSessionBillID string             `json:"active_session_bill_id,omitempty"`
	AdoptedCount        int                `json:"adopted_count"`
	RejectedCount       int                `json:"rejected_count"`
	DeclassedCount      int                `json:"declassed_count"`
}

type MemberResponse struct {
	MemberID      string `json:"member_id"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          string `json:"role"`
	Constituency  string `json:"constituency,omitempty"`
	Active        bool   `json:"active"`
	BillsProposed int    `json:"bills_proposed"`
	VotesCast     int    `json:"votes_cast"`
}

type MemberListResponse struct {
	Items []MemberResponse `json:"items"`
}

type NotificationResponse struct {
	NotificationID string     `json:"notification_id"`
	RecipientID    string     `json:"recipient_id"`
	Kind           string     `json:"kind"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	BillID         string     `json:"bill_id,omitempty"`
	Sender         string     `json:"sender,omitempty"`
	MeetingDate    *time.Time `json:"meeting_date,omitempty"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
}

type NotificationListResponse struct {
	Items []NotificationResponse `json:"items"`
}
