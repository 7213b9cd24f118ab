package project

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/user"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

var ErrNothingSelected = errors.New("No projects selected.")

// InvalidActionError is returned for any review action other than approve or reject.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return "Invalid action requested."
}

// ParseAction accepts "Approve"/"Reject" as well as the lowercase bulk tokens.
func ParseAction(s string) (Action, error) {
	switch Action(core.CleanString(s, true /* lower */)) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", &InvalidActionError{Action: s}
}

// Transition is the outcome of a single review.
// NotifyErr is set when the owner could not be emailed; the review itself is committed regardless.
type Transition struct {
	Project   Project     `json:"project"`
	Entry     audit.Entry `json:"audit_entry"`
	NotifyErr error       `json:"-"`
}

type BulkResult struct {
	Processed      int `json:"processed"`
	NotifyFailures int `json:"notify_failures"`
}

// apply mutates p for action. A rejection clears approved_at but still records the reviewer in approved_by.
func (a Action) apply(p *Project, actor user.User, now time.Time) {
	switch a {
	case ActionApprove:
		p.Status = StatusApproved
		p.ApprovedAt = &now
	case ActionReject:
		p.Status = StatusRejected
		p.ApprovedAt = nil
	}
	p.ApprovedBy = actor.ID
}

func (a Action) auditAction() audit.Action {
	if a == ActionApprove {
		return audit.ActionApprove
	}
	return audit.ActionReject
}

// ApproveOrReject reviews one project. The project update and its audit entry are committed together,
// then the owner is notified. A notification failure is reported in Transition.NotifyErr, not as an error.
func (svc *service) ApproveOrReject(ctx context.Context, actor user.User, id int64, action string) (Transition, error) {
	act, err := ParseAction(action)
	if err != nil {
		return Transition{}, err
	}

	var tr Transition
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		details := fmt.Sprintf("Rejected project ID %d", id)
		if act == ActionApprove {
			details = fmt.Sprintf("Approved project ID %d", id)
		}
		tr.Project, tr.Entry, err = svc.review(ctx, actor, id, act, details, exec)
		return err
	})
	if err != nil {
		return Transition{}, err
	}

	if err = svc.notify(ctx, tr.Project, act, false); err != nil {
		svc.logger.Warn(fmt.Sprintf("Project updated, but email failed: %v", err), err, actor)
		tr.NotifyErr = err
	}
	return tr, nil
}

// BulkApproveOrReject reviews every project in ids, each in its own transaction.
// Unknown ids are skipped. Notification failures are logged and counted but never stop the batch.
func (svc *service) BulkApproveOrReject(ctx context.Context, actor user.User, ids []int64, action string) (BulkResult, error) {
	var res BulkResult
	if len(ids) == 0 {
		return res, ErrNothingSelected
	}
	act, err := ParseAction(action)
	if err != nil {
		return res, err
	}
	details := "Bulk rejection"
	if act == ActionApprove {
		details = "Bulk approval"
	}

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		var p Project
		err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
			p, _, err = svc.review(ctx, actor, id, act, details, exec)
			return err
		})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return res, errors.Wrapf(err, "reviewing project %d", id)
		}
		res.Processed++

		if err = svc.notify(ctx, p, act, true); err != nil {
			svc.logger.Warn(fmt.Sprintf("notifying owner of project %d: %v", p.ID, err), err, actor)
			res.NotifyFailures++
		}
	}
	return res, nil
}

func (svc *service) review(ctx context.Context, actor user.User, id int64, act Action, details string, exec core.DBExecutor) (Project, audit.Entry, error) {
	p, err := svc.repo.GetProject(ctx, id, exec)
	if err != nil {
		return Project{}, audit.Entry{}, err
	}
	act.apply(&p, actor, time.Now().UTC())
	if p, err = svc.repo.UpdateProject(ctx, p, exec); err != nil {
		return Project{}, audit.Entry{}, errors.Wrap(err, "updating project")
	}

	entry, err := svc.auditSvc.Record(ctx, audit.NewEntry(actor.Actor(), act.auditAction(), p.Target(), details), exec)
	if err != nil {
		return Project{}, audit.Entry{}, errors.Wrap(err, "recording audit entry")
	}
	return p, entry, nil
}

// notify emails the outcome of a review to the project owner, if they have an email address.
func (svc *service) notify(ctx context.Context, p Project, act Action, bulk bool) error {
	if p.Owner.Email == "" {
		return nil
	}

	msg := &core.EmailMessage{
		To: []mail.Address{{Name: p.Owner.DisplayName(), Address: p.Owner.Email}},
		TemplateData: map[string]interface{}{
			"Name":  p.Owner.ShortName(),
			"Title": p.Title,
		},
	}
	switch {
	case act == ActionApprove:
		msg.Subject = fmt.Sprintf("🎉 Good News! '%s' was Approved", p.Title)
		msg.TemplateName = "project_approved"
	case bulk:
		msg.Subject = fmt.Sprintf("Update regarding '%s'", p.Title)
		msg.TemplateName = "project_rejected"
	default:
		msg.Subject = fmt.Sprintf("Update regarding your project '%s'", p.Title)
		msg.TemplateName = "project_rejected"
	}
	return svc.mailSvc.Send(ctx, msg)
}
