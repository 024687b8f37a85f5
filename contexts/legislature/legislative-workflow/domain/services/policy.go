package services

import (
	"strings"

	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
)

type Action string

const (
	ActionSubmitBill           Action = "bill.submit"
	ActionOpenConferenceReview Action = "bill.conference_review"
	ActionDecideConference     Action = "bill.conference_decide"
	ActionRecordAnalysis       Action = "bill.analyze"
	ActionScheduleBill         Action = "bill.schedule"
	ActionOpenSession          Action = "plenary.open"
	ActionCastVote             Action = "plenary.vote"
	ActionCloseSession         Action = "plenary.close"
	ActionSendConvocation      Action = "notification.convoke"
)

var rolePolicy = map[Action][]entities.Role{
	ActionSubmitBill:           {entities.RoleDeputy},
	ActionOpenConferenceReview: {entities.RolePresident},
	ActionDecideConference:     {entities.RolePresident},
	ActionRecordAnalysis:       {entities.RoleStudyBureau},
	ActionScheduleBill:         {entities.RolePresident},
	ActionOpenSession:          {entities.RolePresident},
	ActionCastVote:             {entities.RoleDeputy},
	ActionCloseSession:         {entities.RolePresident},
	ActionSendConvocation:      {entities.RolePresident, entities.RoleRapporteur},
}

// Authorize checks the role the identity layer attached to the actor.
func Authorize(actor entities.Actor, action Action) error {
	if strings.TrimSpace(actor.ID) == "" {
		return domainerrors.ErrInvalidActor
	}
	for _, role := range rolePolicy[action] {
		if actor.Role == role {
			return nil
		}
	}
	return domainerrors.ErrRoleNotAllowed
}
