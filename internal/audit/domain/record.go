package domain

import "time"

// Actions recorded on the audit trail.
const (
	ActionRegister    = "register"
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionForceLogout = "force_logout"
	ActionSuspend     = "suspend"
	ActionBan         = "ban"
	ActionBlock       = "block"
	ActionDelete      = "delete"
	ActionReactivate  = "reactivate"
)

// Record is one audit event on an account.
type Record struct {
	ID        string
	AccountID string
	Actor     string
	Action    string
	Reason    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
