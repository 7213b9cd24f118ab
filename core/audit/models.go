package audit

import (
	"strings"
	"time"

	"github.com/trezcool/ihub/core"
)

type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

var Actions = []Action{ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionReject}

func (a Action) IsValid() bool {
	for _, act := range Actions {
		if a == act {
			return true
		}
	}
	return false
}

// Actor is the administrator an Entry is attributed to.
type Actor struct {
	ID       string
	Username string
}

// Entry is an append-only record of an administrative action.
// AdminID is emptied when the admin account is deleted; AdminUsername is kept.
type Entry struct {
	ID            int64     `json:"id"`
	AdminID       string    `json:"admin_id,omitempty"`
	AdminUsername string    `json:"admin_username"`
	Action        Action    `json:"action"`
	TargetObject  string    `json:"target_object"`
	Details       string    `json:"details"`
	Timestamp     time.Time `json:"timestamp"` // UTC
}

func NewEntry(actor Actor, action Action, target, details string) Entry {
	return Entry{
		AdminID:       actor.ID,
		AdminUsername: actor.Username,
		Action:        action,
		TargetObject:  core.CleanString(target),
		Details:       details,
	}
}

// Target formats the target_object column, e.g. `Target("Project", "Campus App")` -> "Project: Campus App".
func Target(kind, name string) string {
	return kind + ": " + name
}

type QueryFilter struct {
	Action  Action `query:"action"`
	AdminID string `query:"admin"`
	Search  string `query:"q"`
}

func (qf *QueryFilter) Clean() {
	qf.Action = Action(strings.ToUpper(core.CleanString(string(qf.Action))))
	if !qf.Action.IsValid() {
		qf.Action = ""
	}
	qf.AdminID = core.CleanString(qf.AdminID)
	qf.Search = core.CleanString(qf.Search)
}
