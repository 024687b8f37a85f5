package entities

import "time"

// PlenarySession is the voting event for one bill. Only one session may be
// active across the assembly.
type PlenarySession struct {
	SessionID string
	BillID    string
	Active    bool
	OpenedBy  string
	OpenedAt  time.Time
	ClosedAt  *time.Time
}

// SessionState is the read model for "is anything being voted right now".
type SessionState struct {
	Active  bool
	Session PlenarySession
	Bill    Bill
}
