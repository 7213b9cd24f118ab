package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
)

const PageSize = 10

var (
	// errors
	ErrNotFound              = errors.New("user not found")
	ErrEmailExists           = errors.New("a user with this email already exists")
	ErrUsernameExists        = errors.New("a user with this username already exists")
	ErrCannotDeleteSuperuser = errors.New("Cannot delete superuser accounts.")
	ErrCannotDeleteSelf      = errors.New("you cannot delete your own account")

	errInvalidValue = "invalid value"

	// QueryOrderings maps the accepted `ordering` params to columns.
	QueryOrderings = map[string]string{
		"username":   "username",
		"email":      "email",
		"created_at": "created_at",
		"last_login": "last_login",
	}
	defaultOrdering = []core.DBOrdering{{Field: "username", Ascending: true}}
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, user User, exec ...core.DBExecutor) (User, error)
		CountUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Username, User.Email or the profile department.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, user User, exec ...core.DBExecutor) (User, error)
		// DeleteUser removes the user along with their profile and projects.
		DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) (core.Paginated[User], error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		// Update runs hooks inside the account's transaction, after the user row is saved.
		Update(ctx context.Context, actor User, id string, uu UpdateUser, hooks ...UpdateHook) (User, error)
		Delete(ctx context.Context, actor User, id string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	// UpdateHook saves data that belongs with an account edit. A returned error rolls the edit back.
	UpdateHook func(ctx context.Context, usr User, exec core.DBExecutor) error

	service struct {
		tx       core.Transactor
		repo     Repository
		auditSvc audit.Service
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	auditSvc audit.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Username:    nu.Username,
		Email:       nu.Email,
		FirstName:   nu.FirstName,
		LastName:    nu.LastName,
		IsActive:    true,
		IsStaff:     nu.IsStaff || nu.IsSuperuser,
		IsSuperuser: nu.IsSuperuser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) (core.Paginated[User], error) {
	filter.Clean()
	ordering = core.CleanOrdering(ordering, QueryOrderings)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}

	count, err := svc.repo.CountUsers(ctx, filter)
	if err != nil {
		return core.Paginated[User]{}, errors.Wrap(err, "counting users")
	}
	page = page.Clamp(count, PageSize)
	users, err := svc.repo.QueryUsers(ctx, filter, ordering, page)
	if err != nil {
		return core.Paginated[User]{}, errors.Wrap(err, "querying users")
	}
	return core.NewPaginated(users, count, page), nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Update applies an administrator's edit of an account and records it in the audit trail.
func (svc *service) Update(ctx context.Context, actor User, id string, uu UpdateUser, hooks ...UpdateHook) (User, error) {
	var updated User
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec)
		if err != nil {
			return err
		}

		if uu.FirstName != nil {
			usr.FirstName = *uu.FirstName
		}
		if uu.LastName != nil {
			usr.LastName = *uu.LastName
		}
		if uu.Email != "" {
			usr.Email = uu.Email
		}
		if uu.IsActive != nil {
			usr.IsActive = *uu.IsActive
		}
		if uu.IsStaff != nil {
			usr.IsStaff = *uu.IsStaff || usr.IsSuperuser
		}
		if uu.Password != "" {
			if err = usr.SetPassword(uu.Password); err != nil {
				return errors.Wrap(err, "setting password")
			}
		}
		usr.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating user")
		}

		entry := audit.NewEntry(actor.Actor(), audit.ActionUpdate, audit.Target("User", usr.Username), "Updated user account details")
		if _, err = svc.auditSvc.Record(ctx, entry, exec); err != nil {
			return errors.Wrap(err, "recording audit entry")
		}
		for _, hook := range hooks {
			if err = hook(ctx, updated, exec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// Delete permanently removes an account. Superusers cannot be deleted, nor can actors delete themselves.
func (svc *service) Delete(ctx context.Context, actor User, id string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec)
		if err != nil {
			return err
		}
		if usr.IsSuperuser {
			return ErrCannotDeleteSuperuser
		}
		if usr.ID == actor.ID {
			return ErrCannotDeleteSelf
		}

		if err = svc.repo.DeleteUser(ctx, usr.ID, exec); err != nil {
			return errors.Wrap(err, "deleting user")
		}

		entry := audit.NewEntry(
			actor.Actor(),
			audit.ActionDelete,
			audit.Target("User", usr.Username),
			fmt.Sprintf("Permanently deleted user account (%s)", usr.Email),
		)
		if _, err = svc.auditSvc.Record(ctx, entry, exec); err != nil {
			return errors.Wrap(err, "recording audit entry")
		}
		return nil
	})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the active account owning email.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	msg, err := svc.passwordResetMessage(usr)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *service) passwordResetMessage(usr User) (*core.EmailMessage, error) {
	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		return nil, errors.Wrap(err, "making password reset token")
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.DisplayName(),
			"Username": usr.Username,
			"UID":      EncodeUID(usr),
			"Token":    token,
		},
	}, nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidUID := core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidUID
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidUID
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token, svc.conf); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return core.NewValidationError(nil, core.FieldError{Field: "token", Error: errInvalidValue})
		}
		return errors.Wrap(err, "verifying token")
	}
	if _, err = svc.SetPassword(ctx, usr, data.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return nil
}
