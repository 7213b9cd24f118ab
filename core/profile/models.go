package profile

import (
	"strings"
	"time"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/user"
)

var YearLevels = []string{"1st Year", "2nd Year", "3rd Year", "4th Year", "5th Year"}

func IsYearLevel(s string) bool {
	for _, yl := range YearLevels {
		if s == yl {
			return true
		}
	}
	return false
}

// Profile holds the student details attached one-to-one to a user.User.
type Profile struct {
	UserID         string    `json:"user_id"`
	FullName       string    `json:"full_name"`
	Title          string    `json:"title"`
	Department     string    `json:"department"`
	YearLevel      string    `json:"year_level"`
	StudentID      string    `json:"student_id"`
	Avatar         string    `json:"avatar"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	GraduationYear string    `json:"graduation_year"`
	Specialization string    `json:"specialization"`
	Major          string    `json:"major"`
	Minor          string    `json:"minor"`
	Courses        string    `json:"courses"`
	Interests      string    `json:"interests"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// View is a Profile resolved for display: remote values fill blanks and the display name is computed.
type View struct {
	Profile
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// RemoteProfile is the profile row kept in the external mirror.
type RemoteProfile struct {
	FullName       string `json:"full_name"`
	Title          string `json:"title"`
	School         string `json:"school"`
	YearLevel      string `json:"year_level"`
	Location       string `json:"location"`
	GraduationYear string `json:"graduation_year"`
	About          string `json:"about"`
	Specialization string `json:"specialization"`
	Major          string `json:"major"`
	Minor          string `json:"minor"`
	Courses        string `json:"courses"`
	Interests      string `json:"interests"`
}

func (p Profile) Remote() RemoteProfile {
	return RemoteProfile{
		FullName:       p.FullName,
		Title:          p.Title,
		School:         p.Department,
		YearLevel:      p.YearLevel,
		Location:       p.Location,
		GraduationYear: p.GraduationYear,
		About:          p.Bio,
		Specialization: p.Specialization,
		Major:          p.Major,
		Minor:          p.Minor,
		Courses:        p.Courses,
		Interests:      p.Interests,
	}
}

// fillFrom copies remote values into the fields left empty locally. Local values always win.
func (p *Profile) fillFrom(rp RemoteProfile) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.FullName, rp.FullName)
	fill(&p.Title, rp.Title)
	fill(&p.Department, rp.School)
	fill(&p.YearLevel, rp.YearLevel)
	fill(&p.Location, rp.Location)
	fill(&p.GraduationYear, rp.GraduationYear)
	fill(&p.Bio, rp.About)
	fill(&p.Specialization, rp.Specialization)
	fill(&p.Major, rp.Major)
	fill(&p.Minor, rp.Minor)
	fill(&p.Courses, rp.Courses)
	fill(&p.Interests, rp.Interests)
}

// DisplayName resolves the name shown for usr:
// profile full name, account full name, username (unless it looks like an email), email local part, then "User".
func DisplayName(usr user.User, p Profile) string {
	if name := core.CleanString(p.FullName); name != "" {
		return name
	}
	if name := usr.FullName(); name != "" {
		return name
	}
	if usr.Username != "" && !strings.Contains(usr.Username, "@") {
		return usr.Username
	}
	if i := strings.Index(usr.Email, "@"); i > 0 {
		return usr.Email[:i]
	}
	return "User"
}

// UpdateProfile defines what information may be provided to modify a Profile.
// nil fields are left untouched.
type UpdateProfile struct {
	FullName       *string `json:"full_name" validate:"omitempty,max=200"`
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Department     *string `json:"department" validate:"omitempty,max=200"`
	YearLevel      *string `json:"year_level" validate:"omitempty,yearlevel"`
	StudentID      *string `json:"student_id" validate:"omitempty,max=50"`
	Bio            *string `json:"bio"`
	Location       *string `json:"location" validate:"omitempty,max=200"`
	GraduationYear *string `json:"graduation_year" validate:"omitempty,max=10"`
	Specialization *string `json:"specialization" validate:"omitempty,max=200"`
	Major          *string `json:"major" validate:"omitempty,max=200"`
	Minor          *string `json:"minor" validate:"omitempty,max=200"`
	Courses        *string `json:"courses"`
	Interests      *string `json:"interests"`
}

func (up *UpdateProfile) clean() {
	for _, fld := range up.fields() {
		if *fld.src != nil {
			v := core.CleanString(**fld.src)
			*fld.src = &v
		}
	}
}

type updateField struct {
	src **string
	dst func(p *Profile) *string
}

func (up *UpdateProfile) fields() []updateField {
	return []updateField{
		{&up.FullName, func(p *Profile) *string { return &p.FullName }},
		{&up.Title, func(p *Profile) *string { return &p.Title }},
		{&up.Department, func(p *Profile) *string { return &p.Department }},
		{&up.YearLevel, func(p *Profile) *string { return &p.YearLevel }},
		{&up.StudentID, func(p *Profile) *string { return &p.StudentID }},
		{&up.Bio, func(p *Profile) *string { return &p.Bio }},
		{&up.Location, func(p *Profile) *string { return &p.Location }},
		{&up.GraduationYear, func(p *Profile) *string { return &p.GraduationYear }},
		{&up.Specialization, func(p *Profile) *string { return &p.Specialization }},
		{&up.Major, func(p *Profile) *string { return &p.Major }},
		{&up.Minor, func(p *Profile) *string { return &p.Minor }},
		{&up.Courses, func(p *Profile) *string { return &p.Courses }},
		{&up.Interests, func(p *Profile) *string { return &p.Interests }},
	}
}

func (up *UpdateProfile) apply(p *Profile) {
	for _, fld := range up.fields() {
		if *fld.src != nil {
			*fld.dst(p) = **fld.src
		}
	}
}
