package entities

import (
	"strings"
	"time"
)

type BillStatus string

const (
	BillStatusSubmitted              BillStatus = "submitted"
	BillStatusUnderConferenceReview  BillStatus = "under_conference_review"
	BillStatusDeclassed              BillStatus = "declassed"
	BillStatusUnderStudyBureauReview BillStatus = "under_study_bureau_review"
	BillStatusAnalyzed               BillStatus = "analyzed"
	BillStatusScheduledForPlenary    BillStatus = "scheduled_for_plenary"
	BillStatusVotingOpen             BillStatus = "voting_open"
	BillStatusAdopted                BillStatus = "adopted"
	BillStatusRejected               BillStatus = "rejected"
)

// billTransitions is the only place legal status moves are declared.
var billTransitions = map[BillStatus][]BillStatus{
	BillStatusSubmitted: {
		BillStatusUnderConferenceReview,
		BillStatusUnderStudyBureauReview,
		BillStatusDeclassed,
	},
	BillStatusUnderConferenceReview: {
		BillStatusUnderStudyBureauReview,
		BillStatusDeclassed,
	},
	BillStatusUnderStudyBureauReview: {BillStatusAnalyzed},
	BillStatusAnalyzed:               {BillStatusScheduledForPlenary},
	BillStatusScheduledForPlenary:    {BillStatusVotingOpen},
	BillStatusVotingOpen:             {BillStatusAdopted, BillStatusRejected},
}

// AllBillStatuses lists statuses in pipeline order.
func AllBillStatuses() []BillStatus {
	return []BillStatus{
		BillStatusSubmitted,
		BillStatusUnderConferenceReview,
		BillStatusDeclassed,
		BillStatusUnderStudyBureauReview,
		BillStatusAnalyzed,
		BillStatusScheduledForPlenary,
		BillStatusVotingOpen,
		BillStatusAdopted,
		BillStatusRejected,
	}
}

func ParseBillStatus(raw string) (BillStatus, bool) {
	value := BillStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range AllBillStatuses() {
		if status == value {
			return status, true
		}
	}
	return "", false
}

func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	for _, candidate := range billTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s BillStatus) IsTerminal() bool {
	return s == BillStatusDeclassed || s == BillStatusAdopted || s == BillStatusRejected
}

type ConferenceDecisionKind string

const (
	ConferenceDecisionValidate ConferenceDecisionKind = "validate"
	ConferenceDecisionDeclass  ConferenceDecisionKind = "declass"
)

func (k ConferenceDecisionKind) Valid() bool {
	return k == ConferenceDecisionValidate || k == ConferenceDecisionDeclass
}

type ConferenceDecision struct {
	Decision     ConferenceDecisionKind `json:"decision"`
	DecidedBy    string                 `json:"decided_by"`
	DecidedAt    time.Time              `json:"decided_at"`
	Observations string                 `json:"observations,omitempty"`
}

type StudyBureauAnalysis struct {
	LegallyCorrect bool      `json:"legally_correct"`
	Original       bool      `json:"original"`
	FundAnalysis   string    `json:"fund_analysis"`
	FormAnalysis   string    `json:"form_analysis"`
	Observations   string    `json:"observations,omitempty"`
	AnalyzedBy     string    `json:"analyzed_by"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

type Bill struct {
	BillID              string
	Subject             string
	Code                string
	Rationale           string
	Attachment          string
	Status              BillStatus
	ProposerID          string
	ProposerName        string
	ConferenceDecision  *ConferenceDecision
	StudyBureauAnalysis *StudyBureauAnalysis
	FinalResult         *VoteResult
	Votes               []Vote
	SubmittedAt         time.Time
	UpdatedAt           time.Time
}

func (b Bill) ValidateCreate() bool {
	return strings.TrimSpace(b.Subject) != "" &&
		strings.TrimSpace(b.Code) != "" &&
		strings.TrimSpace(b.Rationale) != "" &&
		strings.TrimSpace(b.ProposerID) != ""
}

// Consistent reports whether the final result and conference decision agree
// with the bill status.
func (b Bill) Consistent() bool {
	decided := b.Status == BillStatusAdopted || b.Status == BillStatusRejected
	if decided != (b.FinalResult != nil) {
		return false
	}
	if b.ConferenceDecision != nil &&
		b.ConferenceDecision.Decision == ConferenceDecisionDeclass &&
		b.Status != BillStatusDeclassed {
		return false
	}
	return true
}
