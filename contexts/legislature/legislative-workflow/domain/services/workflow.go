package services

import (
	"fmt"
	"strings"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
)

// Transition moves a bill to next when the status table allows it. Bills are
// values; the caller persists the returned copy.
func Transition(bill entities.Bill, next entities.BillStatus, now time.Time) (entities.Bill, error) {
	if bill.Status == entities.BillStatusDeclassed {
		return entities.Bill{}, domainerrors.ErrBillDeclassed
	}
	if !bill.Status.CanTransitionTo(next) {
		return entities.Bill{}, fmt.Errorf("%w: %s to %s", domainerrors.ErrInvalidTransition, bill.Status, next)
	}
	bill.Status = next
	bill.UpdatedAt = now.UTC()
	return bill, nil
}

func OpenConferenceReview(bill entities.Bill, now time.Time) (entities.Bill, error) {
	return Transition(bill, entities.BillStatusUnderConferenceReview, now)
}

// DecideConference records the conference verdict. A bill is judged once per
// pass through conference review.
func DecideConference(bill entities.Bill, decision entities.ConferenceDecision) (entities.Bill, error) {
	if bill.Status == entities.BillStatusDeclassed {
		return entities.Bill{}, domainerrors.ErrBillDeclassed
	}
	if !decision.Decision.Valid() {
		return entities.Bill{}, domainerrors.ErrInvalidDecision
	}
	if bill.ConferenceDecision != nil {
		return entities.Bill{}, domainerrors.ErrBillAlreadyDecided
	}
	if bill.Status != entities.BillStatusSubmitted && bill.Status != entities.BillStatusUnderConferenceReview {
		return entities.Bill{}, fmt.Errorf("%w: conference cannot decide a bill in %s", domainerrors.ErrInvalidTransition, bill.Status)
	}

	next := entities.BillStatusUnderStudyBureauReview
	if decision.Decision == entities.ConferenceDecisionDeclass {
		next = entities.BillStatusDeclassed
	}
	updated, err := Transition(bill, next, decision.DecidedAt)
	if err != nil {
		return entities.Bill{}, err
	}
	decision.DecidedAt = decision.DecidedAt.UTC()
	decision.Observations = strings.TrimSpace(decision.Observations)
	updated.ConferenceDecision = &decision
	return updated, nil
}

func RecordStudyBureauAnalysis(bill entities.Bill, analysis entities.StudyBureauAnalysis) (entities.Bill, error) {
	if bill.Status == entities.BillStatusDeclassed {
		return entities.Bill{}, domainerrors.ErrBillDeclassed
	}
	if bill.Status != entities.BillStatusUnderStudyBureauReview || bill.StudyBureauAnalysis != nil {
		return entities.Bill{}, fmt.Errorf("%w: study bureau cannot analyze a bill in %s", domainerrors.ErrInvalidTransition, bill.Status)
	}
	if strings.TrimSpace(analysis.FundAnalysis) == "" || strings.TrimSpace(analysis.FormAnalysis) == "" {
		return entities.Bill{}, domainerrors.ErrInvalidAnalysis
	}
	updated, err := Transition(bill, entities.BillStatusAnalyzed, analysis.AnalyzedAt)
	if err != nil {
		return entities.Bill{}, err
	}
	analysis.FundAnalysis = strings.TrimSpace(analysis.FundAnalysis)
	analysis.FormAnalysis = strings.TrimSpace(analysis.FormAnalysis)
	analysis.Observations = strings.TrimSpace(analysis.Observations)
	analysis.AnalyzedAt = analysis.AnalyzedAt.UTC()
	updated.StudyBureauAnalysis = &analysis
	return updated, nil
}

func MarkScheduled(bill entities.Bill, now time.Time) (entities.Bill, error) {
	return Transition(bill, entities.BillStatusScheduledForPlenary, now)
}

// OpenVoting only accepts bills that went through scheduling.
func OpenVoting(bill entities.Bill, now time.Time) (entities.Bill, error) {
	if bill.Status == entities.BillStatusDeclassed {
		return entities.Bill{}, domainerrors.ErrBillDeclassed
	}
	if bill.Status != entities.BillStatusScheduledForPlenary {
		return entities.Bill{}, fmt.Errorf("%w (status %s)", domainerrors.ErrBillNotSchedulable, bill.Status)
	}
	return Transition(bill, entities.BillStatusVotingOpen, now)
}

// CloseVoting tallies votes and settles the bill in one step so the result and
// the terminal status are never observed apart.
func CloseVoting(bill entities.Bill, votes []entities.Vote, now time.Time) (entities.Bill, entities.VoteResult, error) {
	if bill.Status != entities.BillStatusVotingOpen {
		if bill.Status == entities.BillStatusDeclassed {
			return entities.Bill{}, entities.VoteResult{}, domainerrors.ErrBillDeclassed
		}
		return entities.Bill{}, entities.VoteResult{}, fmt.Errorf("%w: voting is not open for a bill in %s", domainerrors.ErrInvalidTransition, bill.Status)
	}
	result := entities.Tally(bill.BillID, votes, now)
	updated, err := Transition(bill, result.Status(), now)
	if err != nil {
		return entities.Bill{}, entities.VoteResult{}, err
	}
	updated.FinalResult = &result
	updated.Votes = append([]entities.Vote(nil), votes...)
	return updated, result, nil
}
