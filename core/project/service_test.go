package project_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/testutil"
)

func validSubmission() project.NewProject {
	return project.NewProject{
		Title:       "Campus App",
		Description: "Find your way around campus.",
		Category:    "Web Development",
		GithubURL:   "https://github.com/wildcats/campus-app",
		TechUsed:    "Go, React, PostgreSQL",
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.CreateUser(t, "alice", "alice@test.cd")

	t.Run("other category", func(t *testing.T) {
		np := validSubmission()
		np.Category = "other"
		_, err := env.ProjectSvc.Submit(ctx, alice, np)

		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []core.FieldError{{Field: "other_category", Error: "Please specify the category when selecting 'Other'."}}, verr.Fields)

		np.OtherCategory = "  Robotics "
		p, err := env.ProjectSvc.Submit(ctx, alice, np)
		require.NoError(t, err)
		assert.Equal(t, "Robotics", p.Category)
	})

	t.Run("pending and mirrored", func(t *testing.T) {
		p, err := env.ProjectSvc.Submit(ctx, alice, validSubmission())
		require.NoError(t, err)
		assert.Equal(t, project.StatusPending, p.Status)
		assert.Nil(t, p.ApprovedAt)
		assert.Empty(t, p.ApprovedBy)
		assert.Zero(t, p.Views)
		assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)
		assert.Equal(t, []string{"Go", "React", "PostgreSQL"}, p.TechTokens())

		last := env.Mirror.Projects[len(env.Mirror.Projects)-1]
		assert.Equal(t, p.Remote(), last)
		assert.Equal(t, "Pending", last.Status)
	})

	t.Run("mirror failure is ignored", func(t *testing.T) {
		env.Mirror.Err = errors.New("mirror down")
		defer func() { env.Mirror.Err = nil }()

		_, err := env.ProjectSvc.Submit(ctx, alice, validSubmission())
		assert.NoError(t, err)
	})
}

func TestService_ownerOperations(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.CreateUser(t, "alice", "alice@test.cd")
	bob := env.CreateUser(t, "bob", "bob@test.cd")
	p := env.CreateProject(t, alice, project.Project{Title: "Campus App"})

	_, err := env.ProjectSvc.Update(ctx, bob, p.ID, validSubmission())
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))
	assert.Equal(t, project.ErrNotFound, errors.Cause(env.ProjectSvc.Delete(ctx, bob, p.ID)))
	_, err = env.ProjectSvc.SetScreenshot(ctx, bob, p.ID, bytes.NewReader(testutil.PNG(t, 4, 4)), "a.png")
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))

	p, err = env.ProjectSvc.SetScreenshot(ctx, alice, p.ID, bytes.NewReader(testutil.PNG(t, 4, 4)), "a.png")
	require.NoError(t, err)
	assert.NotEmpty(t, p.Screenshot)

	np := validSubmission()
	np.Title = "Campus App v2"
	updated, err := env.ProjectSvc.Update(ctx, alice, p.ID, np)
	require.NoError(t, err)
	assert.Equal(t, "Campus App v2", updated.Title)
	assert.Equal(t, p.Screenshot, updated.Screenshot)

	list, err := env.ProjectSvc.ListByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, env.ProjectSvc.Delete(ctx, alice, p.ID))
	list, err = env.ProjectSvc.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_publicOperations(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.CreateUser(t, "alice", "alice@test.cd")
	now := time.Now().UTC()

	approved := env.CreateProject(t, alice, project.Project{Title: "Campus App", Status: project.StatusApproved, CreatedAt: now.Add(-time.Hour)})
	env.CreateProject(t, alice, project.Project{Title: "Library Bot", Status: project.StatusApproved, CreatedAt: now})
	pending := env.CreateProject(t, alice, project.Project{Title: "Parking Map"})

	_, err := env.ProjectSvc.View(ctx, pending.ID)
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))
	_, err = env.ProjectSvc.Like(ctx, pending.ID)
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))

	for i := 1; i <= 3; i++ {
		p, err := env.ProjectSvc.View(ctx, approved.ID)
		require.NoError(t, err)
		assert.Equal(t, i, p.Views)
	}
	p, err := env.ProjectSvc.Like(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Likes)
	assert.Equal(t, 3, p.Views)

	gallery, err := env.ProjectSvc.Gallery(ctx, "", core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, gallery.Count)
	assert.Equal(t, "Library Bot", gallery.Results[0].Title)

	gallery, err = env.ProjectSvc.Gallery(ctx, "PARKING", core.Page{})
	require.NoError(t, err)
	assert.Zero(t, gallery.Count)
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.CreateUser(t, "alice", "")
	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		st := project.StatusPending
		if i%3 == 0 {
			st = project.StatusApproved
		}
		env.CreateProject(t, alice, project.Project{Title: string(rune('A' + i)), Status: st, CreatedAt: now.Add(time.Duration(i) * time.Minute)})
	}

	page, err := env.ProjectSvc.Query(ctx, project.QueryFilter{}, nil, core.Page{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Count)
	assert.Equal(t, 2, page.NumPages)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "B", page.Results[0].Title)

	page, err = env.ProjectSvc.Query(ctx, project.QueryFilter{Status: "APPROVED"}, []core.DBOrdering{{Field: "title", Ascending: true}}, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Count)
	assert.Equal(t, "A", page.Results[0].Title)

	queue, err := env.ProjectSvc.PendingQueue(ctx, "", core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 8, queue.Count)
	assert.Equal(t, project.PendingPageSize, len(queue.Results))
	assert.Equal(t, "B", queue.Results[0].Title, "oldest first")
}

func TestService_AdminUpdate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateUser(t, "admin", "", testutil.Staff)
	alice := env.CreateUser(t, "alice", "")
	p := env.CreateProject(t, alice, project.Project{Title: "Campus App"})

	approved := project.StatusApproved
	views := 7
	got, err := env.ProjectSvc.AdminUpdate(ctx, admin, p.ID, project.AdminUpdateProject{Status: &approved, Views: &views})
	require.NoError(t, err)
	assert.Equal(t, project.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, admin.ID, got.ApprovedBy)
	assert.Equal(t, 7, got.Views)
	stamped := *got.ApprovedAt

	title := "  Campus App v2 "
	got, err = env.ProjectSvc.AdminUpdate(ctx, admin, p.ID, project.AdminUpdateProject{Title: &title, Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, "Campus App v2", got.Title)
	assert.True(t, stamped.Equal(*got.ApprovedAt), "approved_at is kept")

	negative := -1
	_, err = env.ProjectSvc.AdminUpdate(ctx, admin, p.ID, project.AdminUpdateProject{Likes: &negative})
	assert.Error(t, err)

	active := project.StatusActive
	got, err = env.ProjectSvc.AdminUpdate(ctx, admin, p.ID, project.AdminUpdateProject{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, project.StatusActive, got.Status)
	assert.Nil(t, got.ApprovedAt, "leaving approved clears the review")
	assert.Empty(t, got.ApprovedBy)
	stored := env.GetProject(t, p.ID)
	assert.Nil(t, stored.ApprovedAt)
	assert.Empty(t, stored.ApprovedBy)

	entries := env.AuditEntries(t, audit.QueryFilter{Action: audit.ActionUpdate})
	assert.Len(t, entries, 3)
	assert.Equal(t, "Project: Campus App v2", entries[0].TargetObject)
}

func TestService_AdminDelete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateUser(t, "admin", "", testutil.Staff)
	alice := env.CreateUser(t, "alice", "")
	p := env.CreateProject(t, alice, project.Project{Title: "Campus App"})

	assert.Equal(t, project.ErrNotFound, errors.Cause(env.ProjectSvc.AdminDelete(ctx, admin, 999)))
	assert.Empty(t, env.AuditEntries(t, audit.QueryFilter{}))

	require.NoError(t, env.ProjectSvc.AdminDelete(ctx, admin, p.ID))
	_, err := env.ProjectSvc.Get(ctx, p.ID)
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))

	entries := env.AuditEntries(t, audit.QueryFilter{Action: audit.ActionDelete})
	require.Len(t, entries, 1)
	assert.Equal(t, "Permanently deleted project submitted by alice", entries[0].Details)
}

func TestService_StatsAndExport(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	alice := env.CreateUser(t, "alice", "alice@test.cd")

	stats, err := env.ProjectSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.NotNil(t, stats.Recent)

	var buf bytes.Buffer
	n, err := env.ProjectSvc.ExportCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "Title,Student,Email,Category,Status,Date Submitted,Views,Likes\n", buf.String())

	for _, st := range []project.Status{project.StatusActive, project.StatusApproved, project.StatusPending} {
		env.CreateProject(t, alice, project.Project{Title: string(st), Status: st})
	}
	stats, err = env.ProjectSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Ongoing)
	assert.Equal(t, [3]int{1, 1, 0}, stats.Chart)

	buf.Reset()
	n, err = env.ProjectSvc.ExportCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
