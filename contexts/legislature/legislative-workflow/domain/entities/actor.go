package entities

import "strings"

type Role string

const (
	RoleDeputy      Role = "deputy"
	RolePresident   Role = "president"
	RoleStudyBureau Role = "study_bureau"
	RoleRapporteur  Role = "rapporteur"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleDeputy:
		return RoleDeputy, true
	case RolePresident:
		return RolePresident, true
	case RoleStudyBureau:
		return RoleStudyBureau, true
	case RoleRapporteur:
		return RoleRapporteur, true
	default:
		return "", false
	}
}

// Actor is the identity handed over by the authentication layer. It is
// trusted as-is.
type Actor struct {
	ID   string
	Name string
	Role Role
}

type Member struct {
	MemberID     string
	DisplayName  string
	Role         Role
	Constituency string
	Active       bool
}

// MemberActivity is a roster entry with its legislative record.
type MemberActivity struct {
	Member        Member
	BillsProposed int
	VotesCast     int
}
