package services

import (
	"errors"
	"testing"
	"time"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
)

func submittedBill() entities.Bill {
	now := time.Now().UTC()
	return entities.Bill{
		BillID:      "bill-1",
		Subject:     "Water access",
		Code:        "LAW-1",
		Rationale:   "Public health",
		Status:      entities.BillStatusSubmitted,
		ProposerID:  "dep-1",
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

func validated(t *testing.T) entities.Bill {
	t.Helper()
	bill, err := DecideConference(submittedBill(), entities.ConferenceDecision{
		Decision:  entities.ConferenceDecisionValidate,
		DecidedBy: "pres-1",
		DecidedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return bill
}

func analyzed(t *testing.T) entities.Bill {
	t.Helper()
	bill, err := RecordStudyBureauAnalysis(validated(t), entities.StudyBureauAnalysis{
		LegallyCorrect: true,
		Original:       true,
		FundAnalysis:   " sound ",
		FormAnalysis:   "clean",
		AnalyzedBy:     "bureau-1",
		AnalyzedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return bill
}

func TestValidateHandsBillToStudyBureau(t *testing.T) {
	bill := validated(t)
	if bill.Status != entities.BillStatusUnderStudyBureauReview {
		t.Fatalf("expected under_study_bureau_review, got %s", bill.Status)
	}
	if bill.ConferenceDecision == nil || bill.ConferenceDecision.Decision != entities.ConferenceDecisionValidate {
		t.Fatalf("expected validate decision recorded, got %+v", bill.ConferenceDecision)
	}
}

func TestDeclassIsFinal(t *testing.T) {
	bill, err := DecideConference(submittedBill(), entities.ConferenceDecision{
		Decision:  entities.ConferenceDecisionDeclass,
		DecidedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("declass: %v", err)
	}
	if bill.Status != entities.BillStatusDeclassed {
		t.Fatalf("expected declassed, got %s", bill.Status)
	}

	now := time.Now()
	checks := []error{}
	_, err = OpenConferenceReview(bill, now)
	checks = append(checks, err)
	_, err = DecideConference(bill, entities.ConferenceDecision{Decision: entities.ConferenceDecisionValidate, DecidedAt: now})
	checks = append(checks, err)
	_, err = RecordStudyBureauAnalysis(bill, entities.StudyBureauAnalysis{FundAnalysis: "a", FormAnalysis: "b", AnalyzedAt: now})
	checks = append(checks, err)
	_, err = MarkScheduled(bill, now)
	checks = append(checks, err)
	_, err = OpenVoting(bill, now)
	checks = append(checks, err)
	_, _, err = CloseVoting(bill, nil, now)
	checks = append(checks, err)
	for i, err := range checks {
		if !errors.Is(err, domainerrors.ErrBillDeclassed) {
			t.Fatalf("check %d: expected ErrBillDeclassed, got %v", i, err)
		}
		if !errors.Is(err, domainerrors.ErrInvalidTransition) {
			t.Fatalf("check %d: declass errors must be invalid transitions", i)
		}
	}
}

func TestConferenceDecidesOnce(t *testing.T) {
	bill := submittedBill()
	bill.Status = entities.BillStatusUnderConferenceReview
	bill.ConferenceDecision = &entities.ConferenceDecision{Decision: entities.ConferenceDecisionValidate}
	_, err := DecideConference(bill, entities.ConferenceDecision{Decision: entities.ConferenceDecisionValidate, DecidedAt: time.Now()})
	if !errors.Is(err, domainerrors.ErrBillAlreadyDecided) {
		t.Fatalf("expected ErrBillAlreadyDecided, got %v", err)
	}
}

func TestUnknownDecisionIsValidationError(t *testing.T) {
	_, err := DecideConference(submittedBill(), entities.ConferenceDecision{Decision: "maybe", DecidedAt: time.Now()})
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalysisRequiresBothParts(t *testing.T) {
	_, err := RecordStudyBureauAnalysis(validated(t), entities.StudyBureauAnalysis{FundAnalysis: "sound", AnalyzedAt: time.Now()})
	if !errors.Is(err, domainerrors.ErrInvalidAnalysis) {
		t.Fatalf("expected ErrInvalidAnalysis, got %v", err)
	}
}

func TestAnalysisTrimsAndAdvances(t *testing.T) {
	bill := analyzed(t)
	if bill.Status != entities.BillStatusAnalyzed {
		t.Fatalf("expected analyzed, got %s", bill.Status)
	}
	if bill.StudyBureauAnalysis.FundAnalysis != "sound" {
		t.Fatalf("expected trimmed fund analysis, got %q", bill.StudyBureauAnalysis.FundAnalysis)
	}
}

func TestOpenVotingRequiresScheduling(t *testing.T) {
	_, err := OpenVoting(analyzed(t), time.Now())
	if !errors.Is(err, domainerrors.ErrBillNotSchedulable) {
		t.Fatalf("expected ErrBillNotSchedulable, got %v", err)
	}
}

func TestCloseVotingSettlesBill(t *testing.T) {
	now := time.Now()
	scheduled, err := MarkScheduled(analyzed(t), now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	open, err := OpenVoting(scheduled, now)
	if err != nil {
		t.Fatalf("open voting: %v", err)
	}
	votes := []entities.Vote{
		{VoterID: "d1", Value: entities.VoteValueYes, CastAt: now},
		{VoterID: "d2", Value: entities.VoteValueNo, CastAt: now},
	}
	settled, result, err := CloseVoting(open, votes, now)
	if err != nil {
		t.Fatalf("close voting: %v", err)
	}
	if settled.Status != entities.BillStatusRejected || result.Outcome != entities.VoteOutcomeRejected {
		t.Fatalf("expected tie to reject, got %s/%s", settled.Status, result.Outcome)
	}
	if settled.FinalResult == nil || !settled.Consistent() {
		t.Fatalf("expected settled bill to carry its result")
	}
	if _, _, err := CloseVoting(settled, votes, now); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second close to fail, got %v", err)
	}
}

func TestAuthorizeByRole(t *testing.T) {
	deputy := entities.Actor{ID: "dep-1", Role: entities.RoleDeputy}
	president := entities.Actor{ID: "pres-1", Role: entities.RolePresident}
	rapporteur := entities.Actor{ID: "rap-1", Role: entities.RoleRapporteur}

	if err := Authorize(deputy, ActionSubmitBill); err != nil {
		t.Fatalf("deputy may submit: %v", err)
	}
	if err := Authorize(president, ActionCastVote); !errors.Is(err, domainerrors.ErrPermission) {
		t.Fatalf("president may not vote, got %v", err)
	}
	if err := Authorize(rapporteur, ActionSendConvocation); err != nil {
		t.Fatalf("rapporteur may convoke: %v", err)
	}
	if err := Authorize(entities.Actor{Role: entities.RoleDeputy}, ActionSubmitBill); !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("missing actor id must be a validation error, got %v", err)
	}
}
