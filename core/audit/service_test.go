package audit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/testutil"
)

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	actor := audit.Actor{ID: "42", Username: "admin"}

	_, err := env.AuditSvc.Record(ctx, audit.NewEntry(actor, "ARCHIVE", "Project: X", ""))
	assert.Error(t, err)

	e, err := env.AuditSvc.Record(ctx, audit.Entry{
		ID:            99,
		AdminID:       actor.ID,
		AdminUsername: actor.Username,
		Action:        audit.ActionCreate,
		TargetObject:  audit.Target("Category", "Games"),
		Details:       "Created category",
	})
	require.NoError(t, err)
	assert.NotEqual(t, int64(99), e.ID, "ids are assigned by the store")
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Minute)
	assert.Equal(t, "Category: Games", e.TargetObject)
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := audit.Actor{ID: "1", Username: "admin"}
	mod := audit.Actor{ID: "2", Username: "mod"}

	for i := 0; i < 25; i++ {
		actor, action := admin, audit.ActionApprove
		if i%5 == 0 {
			actor, action = mod, audit.ActionDelete
		}
		_, err := env.AuditSvc.Record(ctx, audit.NewEntry(actor, action, audit.Target("Project", fmt.Sprintf("P%02d", i)), ""))
		require.NoError(t, err)
	}

	page, err := env.AuditSvc.Query(ctx, audit.QueryFilter{}, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Count)
	assert.Equal(t, 2, page.NumPages)
	require.Len(t, page.Results, audit.PageSize)
	assert.Equal(t, "Project: P24", page.Results[0].TargetObject, "newest first")

	page, err = env.AuditSvc.Query(ctx, audit.QueryFilter{}, core.Page{Number: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Results, 5)

	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{name: "action", filter: audit.QueryFilter{Action: " delete "}, want: 5},
		{name: "unknown action is ignored", filter: audit.QueryFilter{Action: "archive"}, want: 25},
		{name: "admin", filter: audit.QueryFilter{AdminID: "2"}, want: 5},
		{name: "search", filter: audit.QueryFilter{Search: "p1"}, want: 10},
		{name: "combined", filter: audit.QueryFilter{Action: "APPROVE", Search: "p1"}, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.AuditSvc.Query(ctx, tt.filter, core.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Count)
		})
	}
}
