package entities

import (
	"strings"
	"time"
)

type VoteValue string

const (
	VoteValueYes     VoteValue = "yes"
	VoteValueNo      VoteValue = "no"
	VoteValueAbstain VoteValue = "abstain"
)

func ParseVoteValue(raw string) (VoteValue, bool) {
	switch VoteValue(strings.ToLower(strings.TrimSpace(raw))) {
	case VoteValueYes:
		return VoteValueYes, true
	case VoteValueNo:
		return VoteValueNo, true
	case VoteValueAbstain:
		return VoteValueAbstain, true
	default:
		return "", false
	}
}

type Vote struct {
	VoteID    string
	BillID    string
	VoterID   string
	VoterName string
	Value     VoteValue
	CastAt    time.Time
}

type VoteOutcome string

const (
	VoteOutcomeAdopted  VoteOutcome = "adopted"
	VoteOutcomeRejected VoteOutcome = "rejected"
)

type VoteResult struct {
	BillID    string      `json:"bill_id"`
	Yes       int         `json:"yes"`
	No        int         `json:"no"`
	Abstain   int         `json:"abstain"`
	Total     int         `json:"total"`
	Outcome   VoteOutcome `json:"outcome"`
	DecidedAt time.Time   `json:"decided_at"`
}

// Tally counts one ballot per voter. Ties and abstentions never carry a bill.
func Tally(billID string, votes []Vote, decidedAt time.Time) VoteResult {
	result := VoteResult{
		BillID:    billID,
		DecidedAt: decidedAt.UTC(),
	}
	latest := make(map[string]Vote, len(votes))
	for _, vote := range votes {
		if current, ok := latest[vote.VoterID]; ok && current.CastAt.After(vote.CastAt) {
			continue
		}
		latest[vote.VoterID] = vote
	}
	for _, vote := range latest {
		switch vote.Value {
		case VoteValueYes:
			result.Yes++
		case VoteValueNo:
			result.No++
		case VoteValueAbstain:
			result.Abstain++
		}
	}
	result.Total = result.Yes + result.No + result.Abstain
	result.Outcome = VoteOutcomeRejected
	if result.Yes > result.No {
		result.Outcome = VoteOutcomeAdopted
	}
	return result
}

func (r VoteResult) Status() BillStatus {
	if r.Outcome == VoteOutcomeAdopted {
		return BillStatusAdopted
	}
	return BillStatusRejected
}
