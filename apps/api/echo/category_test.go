package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/testutil"
)

func Test_categoryApi(t *testing.T) {
	f := setup(t)
	admin := f.CreateUser(t, "admin", "", testutil.Staff)
	student := f.CreateUser(t, "student", "")
	token := f.getToken(t, admin)

	web := f.CreateCategory(t, "Web Development")
	mobile := f.CreateCategory(t, "Mobile")

	f.runTests(t, []httpTest{
		{
			name: "Public list is sorted by name", path: "/v1/categories",
			wantData: marshalObj(t, []category.Category{mobile, web}),
		},
		{
			name: "Students cannot create", method: http.MethodPost, path: "/v1/admin/categories",
			token: f.getToken(t, student), body: []byte(`{"name":"Games"}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Name required", method: http.MethodPost, path: "/v1/admin/categories", token: token,
			body:     []byte(`{"name":"  "}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"this field is required"}`),
		},
		{
			name: "Duplicate name", method: http.MethodPost, path: "/v1/admin/categories", token: token,
			body:     []byte(`{"name":"web development"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"a category with this name already exists"}`),
		},
		{
			name: "Reserved name", method: http.MethodPost, path: "/v1/admin/categories", token: token,
			body:     []byte(`{"name":"Other"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"this name is reserved"}`),
		},
		{
			name: "Rename to an existing name", method: http.MethodPut, path: fmt.Sprintf("/v1/admin/categories/%d", mobile.ID),
			token: token, body: []byte(`{"name":"Web Development"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"a category with this name already exists"}`),
		},
		{
			name: "Rename unknown", method: http.MethodPut, path: "/v1/admin/categories/999",
			token: token, body: []byte(`{"name":"Games"}`),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "category not found"}),
		},
	})
	assert.Empty(t, f.AuditEntries(t, audit.QueryFilter{}))

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/categories", token, []byte(`{"name":" Games "}`))
		f.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var c category.Category
		unmarshal(t, rec, &c)
		assert.NotZero(t, c.ID)
		assert.Equal(t, "Games", c.Name)

		entries := f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionCreate})
		require.Len(t, entries, 1)
		assert.Equal(t, "Category: Games", entries[0].TargetObject)
	})

	t.Run("rename keeping the same name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/admin/categories/%d", mobile.ID), token, []byte(`{"name":"mobile"}`))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"name":"mobile"}`, mobile.ID), rec.Body.String())

		entries := f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionUpdate})
		require.Len(t, entries, 1)
		assert.Equal(t, "Renamed category from Mobile", entries[0].Details)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/categories/%d", web.ID), token)
		f.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newRequest(http.MethodGet, "/v1/categories")
		f.do(req, rec)
		var cats []category.Category
		unmarshal(t, rec, &cats)
		names := make([]string, 0, len(cats))
		for _, c := range cats {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Games", "mobile"}, names)
		assert.Len(t, f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionDelete}), 1)
	})
}
