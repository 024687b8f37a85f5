package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/domain/services"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

// SubmitBillCommand is the write-model input for a new bill.
type SubmitBillCommand struct {
	Actor          entities.Actor
	Subject        string
	Code           string
	Rationale      string
	Attachment     string
	IdempotencyKey string
}

type SubmitBillResult struct {
	Bill     entities.Bill
	Replayed bool
}

type OpenConferenceReviewCommand struct {
	Actor  entities.Actor
	BillID string
}

type DecideConferenceCommand struct {
	Actor        entities.Actor
	BillID       string
	Decision     entities.ConferenceDecisionKind
	Observations string
}

type RecordAnalysisCommand struct {
	Actor          entities.Actor
	BillID         string
	LegallyCorrect bool
	Original       bool
	FundAnalysis   string
	FormAnalysis   string
	Observations   string
}

type MarkScheduledCommand struct {
	Actor  entities.Actor
	BillID string
}

// LifecycleUseCase owns every bill status change that happens before voting.
// Callers never set a status directly.
type LifecycleUseCase struct {
	UnitOfWork     ports.UnitOfWork
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// SubmitBill creates a bill in the submitted state. An idempotency key, when
// present, makes client retries return the original bill.
func (uc LifecycleUseCase) SubmitBill(ctx context.Context, cmd SubmitBillCommand) (SubmitBillResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("bill submit processing started",
		"event", "workflow_bill_submit_started",
		"module", application.ModuleName,
		"layer", "application",
		"proposer_id", strings.TrimSpace(cmd.Actor.ID),
	)
	if err := services.Authorize(cmd.Actor, services.ActionSubmitBill); err != nil {
		return SubmitBillResult{}, reportFailure(logger, uc.Metrics, "submit_bill", err,
			"proposer_id", strings.TrimSpace(cmd.Actor.ID),
			"role", string(cmd.Actor.Role),
		)
	}

	now := uc.now()
	bill := entities.Bill{
		Subject:      strings.TrimSpace(cmd.Subject),
		Code:         strings.TrimSpace(cmd.Code),
		Rationale:    strings.TrimSpace(cmd.Rationale),
		Attachment:   strings.TrimSpace(cmd.Attachment),
		Status:       entities.BillStatusSubmitted,
		ProposerID:   strings.TrimSpace(cmd.Actor.ID),
		ProposerName: strings.TrimSpace(cmd.Actor.Name),
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if !bill.ValidateCreate() {
		return SubmitBillResult{}, reportFailure(logger, uc.Metrics, "submit_bill", domainerrors.ErrInvalidBillInput,
			"proposer_id", bill.ProposerID,
		)
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashSubmitBillCommand(cmd)
	var result SubmitBillResult
	err := uc.UnitOfWork.WithinTx(ctx, func(repo ports.Repository) error {
		if key != "" {
			record, found, err := repo.GetIdempotency(ctx, key, now)
			if err != nil {
				return err
			}
			if found {
				if record.RequestHash != requestHash {
					return domainerrors.ErrIdempotencyConflict
				}
				existing, err := repo.GetBill(ctx, record.ResourceID)
				if err != nil {
					return err
				}
				result = SubmitBillResult{Bill: existing, Replayed: true}
				return nil
			}
		}

		billID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		bill.BillID = billID
		if err := repo.SaveBill(ctx, bill); err != nil {
			return err
		}
		if err := appendBillEvent(ctx, repo, uc.IDGen, EventBillSubmitted, bill, now, map[string]any{
			"attachment": bill.Attachment,
		}); err != nil {
			return err
		}
		if key != "" {
			if err := repo.PutIdempotency(ctx, ports.IdempotencyRecord{
				Key:         key,
				RequestHash: requestHash,
				ResourceID:  bill.BillID,
				ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
			}); err != nil {
				return err
			}
		}
		result = SubmitBillResult{Bill: bill}
		return nil
	})
	if err != nil {
		return SubmitBillResult{}, reportFailure(logger, uc.Metrics, "submit_bill", err,
			"proposer_id", bill.ProposerID,
		)
	}

	if result.Replayed {
		logger.Info("bill submit replayed",
			"event", "workflow_bill_submit_replayed",
			"module", application.ModuleName,
			"layer", "application",
			"bill_id", result.Bill.BillID,
			"proposer_id", bill.ProposerID,
		)
		return result, nil
	}
	if uc.Metrics != nil {
		uc.Metrics.BillTransitioned("", entities.BillStatusSubmitted)
	}
	logger.Info("bill submitted",
		"event", "workflow_bill_submitted",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", result.Bill.BillID,
		"proposer_id", result.Bill.ProposerID,
		"code", result.Bill.Code,
	)
	return result, nil
}

func (uc LifecycleUseCase) OpenConferenceReview(ctx context.Context, cmd OpenConferenceReviewCommand) (entities.Bill, error) {
	return uc.transition(ctx, "open_conference_review", cmd.Actor, services.ActionOpenConferenceReview, cmd.BillID,
		func(bill entities.Bill, now time.Time) (entities.Bill, string, map[string]any, error) {
			updated, err := services.OpenConferenceReview(bill, now)
			return updated, EventBillConferenceReview, nil, err
		})
}

// DecideConference validates or declasses a bill. Validation hands the bill to
// the study bureau; declassing is final.
func (uc LifecycleUseCase) DecideConference(ctx context.Context, cmd DecideConferenceCommand) (entities.Bill, error) {
	return uc.transition(ctx, "decide_conference", cmd.Actor, services.ActionDecideConference, cmd.BillID,
		func(bill entities.Bill, now time.Time) (entities.Bill, string, map[string]any, error) {
			updated, err := services.DecideConference(bill, entities.ConferenceDecision{
				Decision:     entities.ConferenceDecisionKind(strings.ToLower(strings.TrimSpace(string(cmd.Decision)))),
				DecidedBy:    strings.TrimSpace(cmd.Actor.ID),
				DecidedAt:    now,
				Observations: cmd.Observations,
			})
			if err != nil {
				return entities.Bill{}, "", nil, err
			}
			eventType := EventBillValidated
			if updated.Status == entities.BillStatusDeclassed {
				eventType = EventBillDeclassed
			}
			return updated, eventType, map[string]any{
				"decision":     string(updated.ConferenceDecision.Decision),
				"decided_by":   updated.ConferenceDecision.DecidedBy,
				"observations": updated.ConferenceDecision.Observations,
			}, nil
		})
}

func (uc LifecycleUseCase) RecordStudyBureauAnalysis(ctx context.Context, cmd RecordAnalysisCommand) (entities.Bill, error) {
	return uc.transition(ctx, "record_analysis", cmd.Actor, services.ActionRecordAnalysis, cmd.BillID,
		func(bill entities.Bill, now time.Time) (entities.Bill, string, map[string]any, error) {
			updated, err := services.RecordStudyBureauAnalysis(bill, entities.StudyBureauAnalysis{
				LegallyCorrect: cmd.LegallyCorrect,
				Original:       cmd.Original,
				FundAnalysis:   cmd.FundAnalysis,
				FormAnalysis:   cmd.FormAnalysis,
				Observations:   cmd.Observations,
				AnalyzedBy:     strings.TrimSpace(cmd.Actor.ID),
				AnalyzedAt:     now,
			})
			if err != nil {
				return entities.Bill{}, "", nil, err
			}
			return updated, EventBillAnalysisCompleted, map[string]any{
				"legally_correct": updated.StudyBureauAnalysis.LegallyCorrect,
				"original":        updated.StudyBureauAnalysis.Original,
				"analyzed_by":     updated.StudyBureauAnalysis.AnalyzedBy,
			}, nil
		})
}

// MarkScheduled only records that the conference put the bill on the plenary
// agenda; it does not touch voting state.
func (uc LifecycleUseCase) MarkScheduled(ctx context.Context, cmd MarkScheduledCommand) (entities.Bill, error) {
	return uc.transition(ctx, "mark_scheduled", cmd.Actor, services.ActionScheduleBill, cmd.BillID,
		func(bill entities.Bill, now time.Time) (entities.Bill, string, map[string]any, error) {
			updated, err := services.MarkScheduled(bill, now)
			return updated, EventBillScheduled, nil, err
		})
}

type billMutation func(bill entities.Bill, now time.Time) (entities.Bill, string, map[string]any, error)

func (uc LifecycleUseCase) transition(
	ctx context.Context,
	operation string,
	actor entities.Actor,
	action services.Action,
	billID string,
	mutate billMutation,
) (entities.Bill, error) {
	logger := application.ResolveLogger(uc.Logger)
	billID = strings.TrimSpace(billID)
	logger.Info("bill transition processing started",
		"event", "workflow_"+operation+"_started",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", billID,
		"actor_id", strings.TrimSpace(actor.ID),
	)
	if err := services.Authorize(actor, action); err != nil {
		return entities.Bill{}, reportFailure(logger, uc.Metrics, operation, err,
			"bill_id", billID,
			"actor_id", strings.TrimSpace(actor.ID),
			"role", string(actor.Role),
		)
	}

	now := uc.now()
	var (
		previous entities.BillStatus
		updated  entities.Bill
	)
	err := uc.UnitOfWork.WithinTx(ctx, func(repo ports.Repository) error {
		bill, err := repo.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		previous = bill.Status
		next, eventType, metadata, err := mutate(bill, now)
		if err != nil {
			return err
		}
		if err := repo.SaveBill(ctx, next); err != nil {
			return err
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["previous_status"] = string(previous)
		metadata["actor_id"] = strings.TrimSpace(actor.ID)
		if err := appendBillEvent(ctx, repo, uc.IDGen, eventType, next, now, metadata); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return entities.Bill{}, reportFailure(logger, uc.Metrics, operation, err,
			"bill_id", billID,
			"actor_id", strings.TrimSpace(actor.ID),
		)
	}

	if uc.Metrics != nil {
		uc.Metrics.BillTransitioned(previous, updated.Status)
	}
	logger.Info("bill transitioned",
		"event", "workflow_"+operation+"_completed",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", updated.BillID,
		"from_status", string(previous),
		"to_status", string(updated.Status),
		"actor_id", strings.TrimSpace(actor.ID),
	)
	return updated, nil
}

func (uc LifecycleUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc LifecycleUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func hashSubmitBillCommand(cmd SubmitBillCommand) string {
	payload := map[string]string{
		"proposer_id": strings.TrimSpace(cmd.Actor.ID),
		"subject":     strings.TrimSpace(cmd.Subject),
		"code":        strings.TrimSpace(cmd.Code),
		"rationale":   strings.TrimSpace(cmd.Rationale),
		"attachment":  strings.TrimSpace(cmd.Attachment),
		"op":          "submit_bill",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
