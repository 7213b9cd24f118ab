package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ihub/apps/api/echo"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/user"
	"github.com/trezcool/ihub/testutil"
)

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	f.CreateUser(t, "naughty", "ndog@test.cd", testutil.Inactive)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	f.runTests(t, []httpTest{
		{
			name: "Missing credentials", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/users/login", body: body("bob", testutil.Password),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/users/login", body: body("alice", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", method: http.MethodPost, path: "/v1/users/login", body: body("naughty", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{" ALICE ", "alice@test.cd"} {
		t.Run("Login with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", body(uname, testutil.Password))
			f.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token grants access to authenticated endpoints
			req, rec = newAuthRequest(http.MethodGet, "/v1/me/profile", resp.Token)
			f.do(req, rec)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	usr, err := f.UserSvc.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero(), "last login is recorded")
}

func Test_userApi_refreshToken(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")

	expiredRefresh, err := echoapi.GenerateToken(
		echoapi.GetUserClaims(alice, f.Conf, time.Now().Add(-f.Conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix()),
		f.Conf,
	)
	require.NoError(t, err)

	f.runTests(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "Invalid token", method: http.MethodPost, path: "/v1/users/token-refresh", token: "not.a.jwt",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expiredRefresh,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("Refreshed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", f.getToken(t, alice))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("Deactivated after login", func(t *testing.T) {
		token := f.getToken(t, alice)
		alice.IsActive = false
		_, err := f.UserRepo.UpdateUser(context.Background(), alice)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		f.do(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"account deactivated"}`, rec.Body.String())
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")

	successMsg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	f.runTests(t, []httpTest{
		{
			name: "Invalid email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email":"lol"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email":"email must be a valid email address"}`),
		},
		{
			name: "Unknown email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email":"who@test.cd"}`),
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: successMsg}),
		},
	})
	assert.Empty(t, f.Mail.SentMessages(), "no email for unknown addresses")

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"ALICE@test.cd"}`))
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := f.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
	assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)

	token, err := user.MakeToken(alice, f.Conf)
	require.NoError(t, err)
	newPwd := "Gr33n-Tomato$"
	confirm := func(uid, token string) []byte {
		return marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}

	f.runTests(t, []httpTest{
		{
			name: "Invalid uid", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm("bad", token),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"uid":"invalid value"}`),
		},
		{
			name: "Invalid token", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body:     confirm(user.EncodeUID(alice), "1-abc"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"token":"invalid value"}`),
		},
		{
			name: "Reset", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(user.EncodeUID(alice), token),
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	})

	req, rec = newRequest(http.MethodPost, "/v1/users/login", marshalObj(t, echoapi.LoginRequest{Username: "alice", Password: newPwd}))
	f.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code, "login with the new password")
}

type userPage struct {
	Count    int         `json:"count"`
	Page     int         `json:"page"`
	NumPages int         `json:"num_pages"`
	Results  []user.User `json:"results"`
}

func usernames(users []user.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

func Test_userApi_query(t *testing.T) {
	f := setup(t)
	admin := f.CreateUser(t, "admin", "admin@test.cd", testutil.Staff)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	f.CreateUser(t, "bob", "bob@test.cd", testutil.Inactive)
	f.CreateUser(t, "root", "root@test.cd", testutil.Superuser)

	_, err := f.ProfileSvc.GetOrCreate(context.Background(), alice.ID)
	require.NoError(t, err)
	dept := "Computer Studies"
	_, err = f.ProfileSvc.Update(context.Background(), alice, profile.UpdateProfile{Department: &dept})
	require.NoError(t, err)

	f.runTests(t, []httpTest{
		{name: "Auth required", path: "/v1/admin/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Staff required", path: "/v1/admin/users", token: f.getToken(t, alice),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	adminToken := f.getToken(t, admin)
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", want: []string{"admin", "alice", "bob", "root"}},
		{name: "search username", query: "?q=AL", want: []string{"alice"}},
		{name: "search department", query: "?q=computer", want: []string{"alice"}},
		{name: "inactive", query: "?status=inactive", want: []string{"bob"}},
		{name: "active", query: "?status=active", want: []string{"admin", "alice", "root"}},
		{name: "unknown status is ignored", query: "?status=lol", want: []string{"admin", "alice", "bob", "root"}},
		{name: "ordering", query: "?ordering=-username", want: []string{"root", "bob", "alice", "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/admin/users"+tt.query, adminToken)
			f.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var page userPage
			unmarshal(t, rec, &page)
			assert.Equal(t, len(tt.want), page.Count)
			assert.Equal(t, 1, page.Page)
			assert.Equal(t, 1, page.NumPages)
			assert.Equal(t, tt.want, usernames(page.Results))
		})
	}

	t.Run("pagination", func(t *testing.T) {
		for i := 0; i < user.PageSize; i++ {
			f.CreateUser(t, fmt.Sprintf("student%02d", i), "")
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/users?page=2", adminToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var page userPage
		unmarshal(t, rec, &page)
		assert.Equal(t, user.PageSize+4, page.Count)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 2, page.NumPages)
		assert.Len(t, page.Results, 4)
	})
}

func Test_userApi_create(t *testing.T) {
	f := setup(t)
	admin := f.CreateUser(t, "admin", "admin@test.cd", testutil.Staff)
	f.CreateUser(t, "alice", "alice@test.cd")
	adminToken := f.getToken(t, admin)

	newUser := func(uname, email, pwd string, superuser bool) []byte {
		return marshalObj(t, user.NewUser{Username: uname, Email: email, Password: pwd, PasswordConfirm: pwd, IsSuperuser: superuser})
	}

	f.runTests(t, []httpTest{
		{
			name: "Username taken", method: http.MethodPost, path: "/v1/admin/users", token: adminToken,
			body:     newUser("Alice", "", "Gr33n-Tomato$", false),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"username":"a user with this username already exists"}`),
		},
		{
			name: "Weak password", method: http.MethodPost, path: "/v1/admin/users", token: adminToken,
			body:     newUser("carol", "", "12345678", false),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"password":"password cannot be entirely numeric"}`),
		},
		{
			name: "Only superusers create superusers", method: http.MethodPost, path: "/v1/admin/users", token: adminToken,
			body:     newUser("carol", "", "Gr33n-Tomato$", true),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/users", adminToken, newUser(" Carol ", "Carol@Test.cd", "Gr33n-Tomato$", false))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var usr user.User
	unmarshal(t, rec, &usr)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "carol", usr.Username)
	assert.Equal(t, "carol@test.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.False(t, usr.IsStaff)
}

func Test_userApi_update(t *testing.T) {
	f := setup(t)
	admin := f.CreateUser(t, "admin", "admin@test.cd", testutil.Staff)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	root := f.CreateUser(t, "root", "root@test.cd", testutil.Superuser)
	adminToken := f.getToken(t, admin)

	f.runTests(t, []httpTest{
		{
			name: "Unknown user", method: http.MethodPut, path: "/v1/admin/users/nope", token: adminToken, body: []byte(`{}`),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "user not found"}),
		},
		{
			name: "Invalid email", method: http.MethodPut, path: "/v1/admin/users/" + alice.ID, token: adminToken,
			body:     []byte(`{"email":"lol"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email":"email must be a valid email address"}`),
		},
		{
			name: "Invalid year level", method: http.MethodPut, path: "/v1/admin/users/" + alice.ID, token: adminToken,
			body:     []byte(`{"profile":{"year_level":"9th Year"}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"year_level":"year level must be one of: 1st Year, 2nd Year, 3rd Year, 4th Year, 5th Year"}`),
		},
		{
			name: "Superusers are only edited by superusers", method: http.MethodPut, path: "/v1/admin/users/" + root.ID,
			token: adminToken, body: []byte(`{"is_active":false}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	body := []byte(`{"first_name":" Alice ","last_name":"Liddell","is_staff":true,"profile":{"department":"CCS","year_level":"2nd Year"}}`)
	req, rec := newAuthRequest(http.MethodPut, "/v1/admin/users/"+alice.ID, adminToken, body)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var detail echoapi.UserDetail
	unmarshal(t, rec, &detail)
	assert.Equal(t, "Alice", detail.FirstName)
	assert.Equal(t, "Liddell", detail.LastName)
	assert.True(t, detail.IsStaff)
	assert.Equal(t, "CCS", detail.Profile.Department)
	assert.Equal(t, "2nd Year", detail.Profile.YearLevel)
	assert.Equal(t, "Alice Liddell", detail.Profile.DisplayName)
	assert.Equal(t, "2nd Year", f.Mirror.Profiles[alice.ID].YearLevel, "pushed after commit")

	entries := f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionUpdate})
	require.Len(t, entries, 1)
	assert.Equal(t, "User: alice", entries[0].TargetObject)
	assert.Equal(t, admin.Username, entries[0].AdminUsername)
}

func Test_userApi_destroy(t *testing.T) {
	f := setup(t)
	admin := f.CreateUser(t, "admin", "admin@test.cd", testutil.Staff)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	root := f.CreateUser(t, "root", "root@test.cd", testutil.Superuser)
	p := f.CreateProject(t, alice, projectOf("Campus App"))
	adminToken := f.getToken(t, admin)

	f.runTests(t, []httpTest{
		{
			name: "Staff required", method: http.MethodDelete, path: "/v1/admin/users/" + root.ID, token: f.getToken(t, alice),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Superuser refused", method: http.MethodDelete, path: "/v1/admin/users/" + root.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "Cannot delete superuser accounts."}),
		},
		{
			name: "Self refused", method: http.MethodDelete, path: "/v1/admin/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "you cannot delete your own account"}),
		},
		{
			name: "Unknown user", method: http.MethodDelete, path: "/v1/admin/users/nope", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "user not found"}),
		},
	})
	assert.Empty(t, f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionDelete}), "refused deletions are not audited")

	req, rec := newAuthRequest(http.MethodDelete, "/v1/admin/users/"+alice.ID, adminToken)
	f.do(req, rec)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := f.UserSvc.GetByID(context.Background(), alice.ID)
	assert.Equal(t, user.ErrNotFound, err)
	_, err = f.ProjectRepo.GetProject(context.Background(), p.ID)
	assert.Error(t, err, "projects are deleted with their owner")

	entries := f.AuditEntries(t, audit.QueryFilter{Action: audit.ActionDelete})
	require.Len(t, entries, 1)
	assert.Equal(t, "User: alice", entries[0].TargetObject)
	assert.Equal(t, "Permanently deleted user account (alice@test.cd)", entries[0].Details)
	assert.Equal(t, admin.ID, entries[0].AdminID)

	total, err := f.AuditRepo.CountEntries(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
