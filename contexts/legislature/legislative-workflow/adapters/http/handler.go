package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	"assembly/contexts/legislature/legislative-workflow/application/commands"
	"assembly/contexts/legislature/legislative-workflow/application/queries"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	httptransport "assembly/contexts/legislature/legislative-workflow/transport/http"
)

type Handler struct {
	Lifecycle     commands.LifecycleUseCase
	Plenary       commands.PlenaryUseCase
	Notifications commands.NotificationUseCase
	Queries       queries.BillQueries
	Logger        *slog.Logger
}

func (h Handler) SubmitBillHandler(
	ctx context.Context,
	identity httptransport.Identity,
	idempotencyKey string,
	req httptransport.SubmitBillRequest,
) (httptransport.BillResponse, error) {
	result, err := h.Lifecycle.SubmitBill(ctx, commands.SubmitBillCommand{
		Actor:          toActor(identity),
		Subject:        req.Subject,
		Code:           req.Code,
		Rationale:      req.Rationale,
		Attachment:     req.Attachment,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	resp := mapBill(result.Bill)
	resp.Replayed = result.Replayed
	return resp, nil
}

func (h Handler) OpenConferenceReviewHandler(ctx context.Context, identity httptransport.Identity, billID string) (httptransport.BillResponse, error) {
	bill, err := h.Lifecycle.OpenConferenceReview(ctx, commands.OpenConferenceReviewCommand{
		Actor:  toActor(identity),
		BillID: billID,
	})
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	return mapBill(bill), nil
}

func (h Handler) DecideConferenceHandler(
	ctx context.Context,
	identity httptransport.Identity,
	billID string,
	req httptransport.ConferenceDecisionRequest,
) (httptransport.BillResponse, error) {
	bill, err := h.Lifecycle.DecideConference(ctx, commands.DecideConferenceCommand{
		Actor:        toActor(identity),
		BillID:       billID,
		Decision:     entities.ConferenceDecisionKind(strings.ToLower(strings.TrimSpace(req.Decision))),
		Observations: req.Observations,
	})
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	return mapBill(bill), nil
}

func (h Handler) RecordAnalysisHandler(
	ctx context.Context,
	identity httptransport.Identity,
	billID string,
	req httptransport.AnalysisRequest,
) (httptransport.BillResponse, error) {
	bill, err := h.Lifecycle.RecordStudyBureauAnalysis(ctx, commands.RecordAnalysisCommand{
		Actor:          toActor(identity),
		BillID:         billID,
		LegallyCorrect: req.LegallyCorrect,
		Original:       req.Original,
		FundAnalysis:   req.FundAnalysis,
		FormAnalysis:   req.FormAnalysis,
		Observations:   req.Observations,
	})
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	return mapBill(bill), nil
}

func (h Handler) ScheduleBillHandler(ctx context.Context, identity httptransport.Identity, billID string) (httptransport.BillResponse, error) {
	bill, err := h.Lifecycle.MarkScheduled(ctx, commands.MarkScheduledCommand{
		Actor:  toActor(identity),
		BillID: billID,
	})
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	return mapBill(bill), nil
}

func (h Handler) OpenSessionHandler(
	ctx context.Context,
	identity httptransport.Identity,
	req httptransport.OpenSessionRequest,
) (httptransport.OpenSessionResponse, error) {
	session, err := h.Plenary.OpenSession(ctx, commands.OpenSessionCommand{
		Actor:  toActor(identity),
		BillID: req.BillID,
	})
	if err != nil {
		return httptransport.OpenSessionResponse{}, err
	}
	bill, err := h.Queries.GetBillByID(ctx, session.BillID)
	if err != nil {
		return httptransport.OpenSessionResponse{}, err
	}
	return httptransport.OpenSessionResponse{
		Session: mapSession(session),
		Bill:    mapBill(bill),
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	identity httptransport.Identity,
	billID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Plenary.CastVote(ctx, commands.CastVoteCommand{
		Actor:  toActor(identity),
		BillID: billID,
		Value:  req.Value,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	resp := mapVote(result.Vote)
	resp.Replaced = result.Replaced
	return resp, nil
}

func (h Handler) CloseSessionHandler(ctx context.Context, identity httptransport.Identity, billID string) (httptransport.CloseSessionResponse, error) {
	result, err := h.Plenary.CloseSession(ctx, commands.CloseSessionCommand{
		Actor:  toActor(identity),
		BillID: billID,
	})
	if err != nil {
		return httptransport.CloseSessionResponse{}, err
	}
	return httptransport.CloseSessionResponse{
		Result:  mapResult(result.Result),
		Bill:    mapBill(result.Bill),
		Session: mapSession(result.Session),
	}, nil
}

func (h Handler) GetBillHandler(ctx context.Context, billID string) (httptransport.BillResponse, error) {
	bill, err := h.Queries.GetBillByID(ctx, billID)
	if err != nil {
		return httptransport.BillResponse{}, err
	}
	return mapBill(bill), nil
}

// ListBillsHandler lists every bill, or only those in status when it is set.
func (h Handler) ListBillsHandler(ctx context.Context, status string) (httptransport.BillListResponse, error) {
	var (
		bills []entities.Bill
		err   error
	)
	if strings.TrimSpace(status) == "" {
		bills, err = h.Queries.ListBills(ctx)
	} else {
		bills, err = h.Queries.GetBillsByStatus(ctx, status)
	}
	if err != nil {
		return httptransport.BillListResponse{}, err
	}
	return httptransport.BillListResponse{Items: mapBills(bills)}, nil
}

func (h Handler) MemberBillsHandler(ctx context.Context, memberID string) (httptransport.BillListResponse, error) {
	bills, err := h.Queries.GetUserBills(ctx, memberID)
	if err != nil {
		return httptransport.BillListResponse{}, err
	}
	return httptransport.BillListResponse{Items: mapBills(bills)}, nil
}

func (h Handler) SessionStateHandler(ctx context.Context) (httptransport.SessionStateResponse, error) {
	state, err := h.Queries.GetSessionState(ctx)
	if err != nil {
		return httptransport.SessionStateResponse{}, err
	}
	if !state.Active {
		return httptransport.SessionStateResponse{}, nil
	}
	session := mapSession(state.Session)
	bill := mapBill(state.Bill)
	return httptransport.SessionStateResponse{
		Active:  true,
		Session: &session,
		Bill:    &bill,
	}, nil
}

func (h Handler) StatsHandler(ctx context.Context) (httptransport.StatsResponse, error) {
	stats, err := h.Queries.Stats(ctx)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	byStatus := make(map[string]int, len(stats.BillsByStatus))
	for status, count := range stats.BillsByStatus {
		byStatus[string(status)] = count
	}
	activity := make([]httptransport.ActivityResponse, 0, len(stats.RecentActivity))
	for _, item := range stats.RecentActivity {
		activity = append(activity, httptransport.ActivityResponse{
			BillID:      item.BillID,
			Kind:        item.Kind,
			Description: item.Description,
			OccurredAt:  item.OccurredAt,
		})
	}
	return httptransport.StatsResponse{
		TotalBills:          stats.TotalBills,
		BillsByStatus:       byStatus,
		BillsByConstituency: stats.BillsByConstituency,
		RecentActivity:      activity,
		ActiveSessionBillID: stats.ActiveSessionBillID,
		AdoptedCount:        stats.AdoptedCount,
		RejectedCount:       stats.RejectedCount,
		DeclassedCount:      stats.DeclassedCount,
	}, nil
}

func (h Handler) ListMembersHandler(ctx context.Context) (httptransport.MemberListResponse, error) {
	members, err := h.Queries.ListMembers(ctx)
	if err != nil {
		return httptransport.MemberListResponse{}, err
	}
	items := make([]httptransport.MemberResponse, 0, len(members))
	for _, item := range members {
		items = append(items, httptransport.MemberResponse{
			MemberID:      item.Member.MemberID,
			DisplayName:   item.Member.DisplayName,
			Role:          string(item.Member.Role),
			Constituency:  item.Member.Constituency,
			Active:        item.Member.Active,
			BillsProposed: item.BillsProposed,
			VotesCast:     item.VotesCast,
		})
	}
	return httptransport.MemberListResponse{Items: items}, nil
}

func (h Handler) ListNotificationsHandler(
	ctx context.Context,
	identity httptransport.Identity,
	unreadOnly bool,
) (httptransport.NotificationListResponse, error) {
	items, err := h.Queries.ListNotifications(ctx, identity.UserID, unreadOnly)
	if err != nil {
		return httptransport.NotificationListResponse{}, err
	}
	return httptransport.NotificationListResponse{Items: mapNotifications(items)}, nil
}

func (h Handler) MarkNotificationReadHandler(ctx context.Context, identity httptransport.Identity, notificationID string) error {
	return h.Notifications.MarkRead(ctx, commands.MarkNotificationReadCommand{
		RecipientID:    identity.UserID,
		NotificationID: notificationID,
	})
}

func (h Handler) SendConvocationHandler(
	ctx context.Context,
	identity httptransport.Identity,
	req httptransport.ConvocationRequest,
) (httptransport.NotificationListResponse, error) {
	sent, err := h.Notifications.SendConvocation(ctx, commands.SendConvocationCommand{
		Actor:        toActor(identity),
		RecipientIDs: req.RecipientIDs,
		Kind:         entities.NotificationKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Title:        req.Title,
		Message:      req.Message,
		BillID:       req.BillID,
		MeetingDate:  req.MeetingDate,
	})
	if err != nil {
		return httptransport.NotificationListResponse{}, err
	}
	return httptransport.NotificationListResponse{Items: mapNotifications(sent)}, nil
}

// toActor keeps an unknown role empty so the policy rejects it.
func toActor(identity httptransport.Identity) entities.Actor {
	role, _ := entities.ParseRole(identity.Role)
	return entities.Actor{
		ID:   strings.TrimSpace(identity.UserID),
		Name: strings.TrimSpace(identity.UserName),
		Role: role,
	}
}

func mapBills(bills []entities.Bill) []httptransport.BillResponse {
	items := make([]httptransport.BillResponse, 0, len(bills))
	for _, bill := range bills {
		items = append(items, mapBill(bill))
	}
	return items
}

func mapBill(bill entities.Bill) httptransport.BillResponse {
	resp := httptransport.BillResponse{
		BillID:       bill.BillID,
		Subject:      bill.Subject,
		Code:         bill.Code,
		Rationale:    bill.Rationale,
		Attachment:   bill.Attachment,
		Status:       string(bill.Status),
		ProposerID:   bill.ProposerID,
		ProposerName: bill.ProposerName,
		SubmittedAt:  bill.SubmittedAt,
		UpdatedAt:    bill.UpdatedAt,
	}
	if decision := bill.ConferenceDecision; decision != nil {
		resp.ConferenceDecision = &httptransport.ConferenceDecisionResponse{
			Decision:     string(decision.Decision),
			DecidedBy:    decision.DecidedBy,
			DecidedAt:    decision.DecidedAt,
			Observations: decision.Observations,
		}
	}
	if analysis := bill.StudyBureauAnalysis; analysis != nil {
		resp.StudyBureauAnalysis = &httptransport.AnalysisResponse{
			LegallyCorrect: analysis.LegallyCorrect,
			Original:       analysis.Original,
			FundAnalysis:   analysis.FundAnalysis,
			FormAnalysis:   analysis.FormAnalysis,
			Observations:   analysis.Observations,
			AnalyzedBy:     analysis.AnalyzedBy,
			AnalyzedAt:     analysis.AnalyzedAt,
		}
	}
	if bill.FinalResult != nil {
		result := mapResult(*bill.FinalResult)
		resp.FinalResult = &result
	}
	for _, vote := range bill.Votes {
		resp.Votes = append(resp.Votes, mapVote(vote))
	}
	return resp
}

func mapVote(vote entities.Vote) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		VoteID:    vote.VoteID,
		BillID:    vote.BillID,
		VoterID:   vote.VoterID,
		VoterName: vote.VoterName,
		Value:     string(vote.Value),
		CastAt:    vote.CastAt,
	}
}

func mapResult(result entities.VoteResult) httptransport.VoteResultResponse {
	return httptransport.VoteResultResponse{
		Yes:       result.Yes,
		No:        result.No,
		Abstain:   result.Abstain,
		Total:     result.Total,
		Outcome:   string(result.Outcome),
		DecidedAt: result.DecidedAt,
	}
}

func mapSession(session entities.PlenarySession) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID: session.SessionID,
		BillID:    session.BillID,
		Active:    session.Active,
		OpenedBy:  session.OpenedBy,
		OpenedAt:  session.OpenedAt,
		ClosedAt:  session.ClosedAt,
	}
}

func mapNotifications(items []entities.Notification) []httptransport.NotificationResponse {
	out := make([]httptransport.NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, httptransport.NotificationResponse{
			NotificationID: item.NotificationID,
			RecipientID:    item.RecipientID,
			Kind:           string(item.Kind),
			Title:          item.Title,
			Message:        item.Message,
			BillID:         item.BillID,
			Sender:         item.Sender,
			MeetingDate:    item.MeetingDate,
			Read:           item.Read,
			CreatedAt:      item.CreatedAt,
		})
	}
	return out
}
