package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/profile"
)

type profileRow struct {
	UserID         string      `db:"user_id"`
	FullName       null.String `db:"full_name"`
	Title          null.String `db:"title"`
	Department     null.String `db:"department"`
	YearLevel      null.String `db:"year_level"`
	StudentID      null.String `db:"student_id"`
	Avatar         null.String `db:"avatar"`
	Bio            null.String `db:"bio"`
	Location       null.String `db:"location"`
	GraduationYear null.String `db:"graduation_year"`
	Specialization null.String `db:"specialization"`
	Major          null.String `db:"major"`
	Minor          null.String `db:"minor"`
	Courses        null.String `db:"courses"`
	Interests      null.String `db:"interests"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func toProfileRow(p profile.Profile) profileRow {
	return profileRow{
		UserID:         p.UserID,
		FullName:       nullString(p.FullName),
		Title:          nullString(p.Title),
		Department:     nullString(p.Department),
		YearLevel:      nullString(p.YearLevel),
		StudentID:      nullString(p.StudentID),
		Avatar:         nullString(p.Avatar),
		Bio:            nullString(p.Bio),
		Location:       nullString(p.Location),
		GraduationYear: nullString(p.GraduationYear),
		Specialization: nullString(p.Specialization),
		Major:          nullString(p.Major),
		Minor:          nullString(p.Minor),
		Courses:        nullString(p.Courses),
		Interests:      nullString(p.Interests),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (r profileRow) profile() profile.Profile {
	return profile.Profile{
		UserID:         r.UserID,
		FullName:       r.FullName.String,
		Title:          r.Title.String,
		Department:     r.Department.String,
		YearLevel:      r.YearLevel.String,
		StudentID:      r.StudentID.String,
		Avatar:         r.Avatar.String,
		Bio:            r.Bio.String,
		Location:       r.Location.String,
		GraduationYear: r.GraduationYear.String,
		Specialization: r.Specialization.String,
		Major:          r.Major.String,
		Minor:          r.Minor.String,
		Courses:        r.Courses.String,
		Interests:      r.Interests.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type profileRepository struct {
	baseRepository
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{baseRepository{db: db}}
}

func (repo *profileRepository) GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (profile.Profile, error) {
	var r profileRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &r, "SELECT * FROM profile WHERE user_id = $1", userID); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile")
	}
	return r.profile(), nil
}

// CreateProfile is idempotent: concurrent first accesses both end up with the same row.
func (repo *profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	q := `INSERT INTO profile (user_id, full_name, title, department, year_level, student_id, avatar, bio, location,
			graduation_year, specialization, major, minor, courses, interests, created_at, updated_at)
		VALUES (:user_id, :full_name, :title, :department, :year_level, :student_id, :avatar, :bio, :location,
			:graduation_year, :specialization, :major, :minor, :courses, :interests, :created_at, :updated_at)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toProfileRow(p)); err != nil {
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return repo.GetProfile(ctx, p.UserID, exec...)
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	q := `UPDATE profile SET full_name = :full_name, title = :title, department = :department, year_level = :year_level,
			student_id = :student_id, avatar = :avatar, bio = :bio, location = :location, graduation_year = :graduation_year,
			specialization = :specialization, major = :major, minor = :minor, courses = :courses, interests = :interests,
			updated_at = :updated_at
		WHERE user_id = :user_id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toProfileRow(p))
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}
