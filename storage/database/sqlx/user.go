package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/user"
)

const userColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.is_active, u.is_staff, u.is_superuser,
	u.password_hash, u.created_at, u.updated_at, u.last_login`

type userRow struct {
	ID           string      `db:"id"`
	Username     string      `db:"username"`
	Email        null.String `db:"email"`
	FirstName    string      `db:"first_name"`
	LastName     string      `db:"last_name"`
	IsActive     bool        `db:"is_active"`
	IsStaff      bool        `db:"is_staff"`
	IsSuperuser  bool        `db:"is_superuser"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		IsActive:     usr.IsActive,
		IsStaff:      usr.IsStaff,
		IsSuperuser:  usr.IsSuperuser,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email.String,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		IsActive:     r.IsActive,
		IsStaff:      r.IsStaff,
		IsSuperuser:  r.IsSuperuser,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{baseRepository{db: db}}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var where whereClause
	if email != "" {
		where.add("u.username = ? OR u.email = ?", username, email)
	} else {
		where.add("u.username = ?", username)
	}
	for _, u := range excludedUsers {
		where.add("u.id <> ?", u.ID)
	}

	var rows []struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	q := repo.db.Rebind(`SELECT u.username, u.email FROM "user" u` + where.String() + " LIMIT 2")
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	q := `INSERT INTO "user" (id, username, email, first_name, last_name, is_active, is_staff, is_superuser,
			password_hash, created_at, updated_at, last_login)
		VALUES (:id, :username, :email, :first_name, :last_name, :is_active, :is_staff, :is_superuser,
			:password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) where(filter user.QueryFilter) whereClause {
	var where whereClause
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("u.username ILIKE ? OR u.email ILIKE ? OR pr.department ILIKE ?", pattern, pattern, pattern)
	}
	if isActive := filter.IsActive(); isActive != nil {
		where.add("u.is_active = ?", *isActive)
	}
	return where
}

const userFrom = ` FROM "user" u LEFT JOIN profile pr ON pr.user_id = u.id`

func (repo *userRepository) CountUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	where := repo.where(filter)
	var count int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, repo.db.Rebind("SELECT COUNT(*)"+userFrom+where.String()), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]user.User, error) {
	where := repo.where(filter)
	q := repo.db.Rebind("SELECT " + userColumns + userFrom + where.String() + orderBy("u", ordering, "u.id ASC") + limitOffset(page))

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where whereClause
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		where.add("u.id = ?", filter.ID)
	case filter.Username != "":
		where.add("u.username = ?", strings.ToLower(filter.Username))
	case filter.Email != "":
		where.add("u.email = ?", strings.ToLower(filter.Email))
	case filter.UsernameOrEmail != "":
		val := strings.ToLower(filter.UsernameOrEmail)
		where.add("u.username = ? OR u.email = ?", val, val)
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	q := repo.db.Rebind("SELECT " + userColumns + ` FROM "user" u` + where.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &r, q, where.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return r.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `UPDATE "user" SET username = :username, email = :email, first_name = :first_name, last_name = :last_name,
			is_active = :is_active, is_staff = :is_staff, is_superuser = :is_superuser, password_hash = :password_hash,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// DeleteUser relies on the foreign keys to cascade to the profile and projects.
func (repo *userRepository) DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}
