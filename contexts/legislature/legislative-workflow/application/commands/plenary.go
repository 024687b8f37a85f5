package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "assembly/contexts/legislature/legislative-workflow/application"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/domain/services"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

type OpenSessionCommand struct {
	Actor  entities.Actor
	BillID string
}

type CastVoteCommand struct {
	Actor  entities.Actor
	BillID string
	Value  string
}

// CastVoteResult reports the stored ballot and whether it replaced an earlier
// ballot from the same deputy.
type CastVoteResult struct {
	Vote     entities.Vote
	Replaced bool
}

type CloseSessionCommand struct {
	Actor  entities.Actor
	BillID string
}

type CloseSessionResult struct {
	Result  entities.VoteResult
	Bill    entities.Bill
	Session entities.PlenarySession
}

// PlenaryUseCase runs the single assembly-wide voting session. Open, cast and
// close all execute inside one unit of work so the active-session slot and the
// bill's ballots never drift apart.
type PlenaryUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc PlenaryUseCase) OpenSession(ctx context.Context, cmd OpenSessionCommand) (entities.PlenarySession, error) {
	logger := application.ResolveLogger(uc.Logger)
	billID := strings.TrimSpace(cmd.BillID)
	logger.Info("plenary open processing started",
		"event", "workflow_open_session_started",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", billID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
	)
	if err := services.Authorize(cmd.Actor, services.ActionOpenSession); err != nil {
		return entities.PlenarySession{}, reportFailure(logger, uc.Metrics, "open_session", err,
			"bill_id", billID,
			"role", string(cmd.Actor.Role),
		)
	}

	now := uc.now()
	var session entities.PlenarySession
	err := uc.UnitOfWork.WithinTx(ctx, func(repo ports.Repository) error {
		if err := rejectDeclassed(ctx, repo, billID); err != nil {
			return err
		}
		if active, found, err := repo.GetActiveSession(ctx); err != nil {
			return err
		} else if found {
			logger.Warn("plenary session already active",
				"event", "workflow_open_session_conflict",
				"module", application.ModuleName,
				"layer", "application",
				"bill_id", billID,
				"active_bill_id", active.BillID,
			)
			return domainerrors.ErrSessionAlreadyActive
		}

		bill, err := repo.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		updated, err := services.OpenVoting(bill, now)
		if err != nil {
			return err
		}
		sessionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		opened := entities.PlenarySession{
			SessionID: sessionID,
			BillID:    updated.BillID,
			Active:    true,
			OpenedBy:  strings.TrimSpace(cmd.Actor.ID),
			OpenedAt:  now,
		}
		if err := repo.SaveSession(ctx, opened); err != nil {
			return err
		}
		if err := repo.SaveBill(ctx, updated); err != nil {
			return err
		}
		if err := appendBillEvent(ctx, repo, uc.IDGen, EventSessionOpened, updated, now, map[string]any{
			"session_id": opened.SessionID,
			"opened_by":  opened.OpenedBy,
		}); err != nil {
			return err
		}
		session = opened
		return nil
	})
	if err != nil {
		return entities.PlenarySession{}, reportFailure(logger, uc.Metrics, "open_session", err,
			"bill_id", billID,
		)
	}

	if uc.Metrics != nil {
		uc.Metrics.BillTransitioned(entities.BillStatusScheduledForPlenary, entities.BillStatusVotingOpen)
		uc.Metrics.SessionOpened(session.BillID)
	}
	logger.Info("plenary session opened",
		"event", "workflow_session_opened",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"bill_id", session.BillID,
		"opened_by", session.OpenedBy,
	)
	return session, nil
}

// CastVote records a deputy's ballot for the bill under vote. A second ballot
// from the same deputy replaces the first.
func (uc PlenaryUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	billID := strings.TrimSpace(cmd.BillID)
	voterID := strings.TrimSpace(cmd.Actor.ID)
	if err := services.Authorize(cmd.Actor, services.ActionCastVote); err != nil {
		return CastVoteResult{}, reportFailure(logger, uc.Metrics, "cast_vote", err,
			"bill_id", billID,
			"voter_id", voterID,
			"role", string(cmd.Actor.Role),
		)
	}
	value, ok := entities.ParseVoteValue(cmd.Value)
	if !ok {
		return CastVoteResult{}, reportFailure(logger, uc.Metrics, "cast_vote", domainerrors.ErrInvalidVoteValue,
			"bill_id", billID,
			"voter_id", voterID,
		)
	}

	now := uc.now()
	var result CastVoteResult
	err := uc.UnitOfWork.WithinTx(ctx, func(repo ports.Repository) error {
		if err := rejectDeclassed(ctx, repo, billID); err != nil {
			return err
		}
		active, found, err := repo.GetActiveSession(ctx)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrNoActiveSession
		}
		if active.BillID != billID {
			return domainerrors.ErrSessionBillMismatch
		}
		bill, err := repo.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if bill.Status != entities.BillStatusVotingOpen {
			return domainerrors.ErrInvalidTransition
		}

		existing, err := repo.ListVotesByBill(ctx, billID)
		if err != nil {
			return err
		}
		replaced := false
		for _, vote := range existing {
			if vote.VoterID == voterID {
				replaced = true
				break
			}
		}

		voteID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		vote := entities.Vote{
			VoteID:    voteID,
			BillID:    billID,
			VoterID:   voterID,
			VoterName: strings.TrimSpace(cmd.Actor.Name),
			Value:     value,
			CastAt:    now,
		}
		if err := repo.SaveVote(ctx, vote); err != nil {
			return err
		}
		if err := appendBillEvent(ctx, repo, uc.IDGen, EventVoteCast, bill, now, map[string]any{
			"session_id": active.SessionID,
			"vote_id":    vote.VoteID,
			"voter_id":   vote.VoterID,
			"value":      string(vote.Value),
			"replaced":   replaced,
		}); err != nil {
			return err
		}
		result = CastVoteResult{Vote: vote, Replaced: replaced}
		return nil
	})
	if err != nil {
		return CastVoteResult{}, reportFailure(logger, uc.Metrics, "cast_vote", err,
			"bill_id", billID,
			"voter_id", voterID,
		)
	}

	if uc.Metrics != nil {
		uc.Metrics.VoteCast(result.Vote.Value, result.Replaced)
	}
	logger.Info("plenary vote cast",
		"event", "workflow_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", billID,
		"vote_id", result.Vote.VoteID,
		"voter_id", voterID,
		"value", string(result.Vote.Value),
		"replaced", result.Replaced,
	)
	return result, nil
}

// CloseSession tallies the ballots, settles the bill and frees the session
// slot as one unit.
func (uc PlenaryUseCase) CloseSession(ctx context.Context, cmd CloseSessionCommand) (CloseSessionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	billID := strings.TrimSpace(cmd.BillID)
	logger.Info("plenary close processing started",
		"event", "workflow_close_session_started",
		"module", application.ModuleName,
		"layer", "application",
		"bill_id", billID,
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
	)
	if err := services.Authorize(cmd.Actor, services.ActionCloseSession); err != nil {
		return CloseSessionResult{}, reportFailure(logger, uc.Metrics, "close_session", err,
			"bill_id", billID,
			"role", string(cmd.Actor.Role),
		)
	}

	now := uc.now()
	var result CloseSessionResult
	err := uc.UnitOfWork.WithinTx(ctx, func(repo ports.Repository) error {
		if err := rejectDeclassed(ctx, repo, billID); err != nil {
			return err
		}
		active, found, err := repo.GetActiveSession(ctx)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrNoActiveSession
		}
		if active.BillID != billID {
			return domainerrors.ErrSessionBillMismatch
		}
		bill, err := repo.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		votes, err := repo.ListVotesByBill(ctx, billID)
		if err != nil {
			return err
		}
		settled, tally, err := services.CloseVoting(bill, votes, now)
		if err != nil {
			return err
		}
		if err := repo.SaveBill(ctx, settled); err != nil {
			return err
		}
		closedAt := now
		active.Active = false
		active.ClosedAt = &closedAt
		if err := repo.SaveSession(ctx, active); err != nil {
			return err
		}
		if err := appendBillEvent(ctx, repo, uc.IDGen, EventSessionClosed, settled, now, map[string]any{
			"session_id": active.SessionID,
			"yes":        tally.Yes,
			"no":         tally.No,
			"abstain":    tally.Abstain,
			"total":      tally.Total,
			"outcome":    string(tally.Outcome),
		}); err != nil {
			return err
		}
		result = CloseSessionResult{Result: tally, Bill: settled, Session: active}
		return nil
	})
	if err != nil {
		return CloseSessionResult{}, reportFailure(logger, uc.Metrics, "close_session", err,
			"bill_id", billID,
		)
	}

	if uc.Metrics != nil {
		uc.Metrics.BillTransitioned(entities.BillStatusVotingOpen, result.Bill.Status)
		uc.Metrics.SessionClosed(result.Result.Outcome)
	}
	logger.Info("plenary session closed",
		"event", "workflow_session_closed",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", result.Session.SessionID,
		"bill_id", billID,
		"yes", result.Result.Yes,
		"no", result.Result.No,
		"abstain", result.Result.Abstain,
		"outcome", string(result.Result.Outcome),
	)
	return result, nil
}

// rejectDeclassed fails every plenary call on a declassed bill before the
// session slot is consulted. Unknown bills fall through to the session checks.
func rejectDeclassed(ctx context.Context, repo ports.Repository, billID string) error {
	bill, err := repo.GetBill(ctx, billID)
	if errors.Is(err, domainerrors.ErrBillNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if bill.Status == entities.BillStatusDeclassed {
		return domainerrors.ErrBillDeclassed
	}
	return nil
}

func (uc PlenaryUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
