package echoapi_test

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ihub/apps/api/echo"
	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/testutil"
)

func projectOf(title string) project.Project {
	return project.Project{
		Title:     title,
		Category:  "Web Development",
		GithubURL: "https://github.com/wildcats/" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		TechUsed:  "Go, React",
	}
}

func withStatus(p project.Project, status project.Status, createdAt time.Time) project.Project {
	p.Status = status
	p.CreatedAt = createdAt.UTC()
	return p
}

func titles(projects []project.Project) []string {
	ts := make([]string, 0, len(projects))
	for _, p := range projects {
		ts = append(ts, p.Title)
	}
	return ts
}

func projectPath(id int64, suffix ...string) string {
	return fmt.Sprintf("/v1/projects/%d", id) + strings.Join(suffix, "")
}

func Test_projectApi_gallery(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	now := time.Now()

	f.CreateProject(t, alice, withStatus(projectOf("Campus App"), project.StatusApproved, now.Add(-3*time.Hour)))
	f.CreateProject(t, alice, withStatus(projectOf("Library Bot"), project.StatusApproved, now.Add(-1*time.Hour)))
	f.CreateProject(t, alice, withStatus(projectOf("Parking Map"), project.StatusPending, now))
	f.CreateProject(t, alice, withStatus(projectOf("Exam Leaks"), project.StatusRejected, now))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "approved only, newest first", want: []string{"Library Bot", "Campus App"}},
		{name: "search", query: "?q=campus", want: []string{"Campus App"}},
		{name: "search by owner", query: "?q=ALI", want: []string{"Library Bot", "Campus App"}},
		{name: "search ignores unapproved", query: "?q=parking", want: []string{}},
		{name: "page past the end shows the last page", query: "?page=9", want: []string{"Library Bot", "Campus App"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, "/v1/gallery"+tt.query)
			f.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var page core.Paginated[project.Project]
			unmarshal(t, rec, &page)
			assert.Equal(t, len(tt.want), page.Count)
			assert.Equal(t, 1, page.Page)
			assert.Equal(t, tt.want, titles(page.Results))
		})
	}
}

func Test_projectApi_retrieveAndLike(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd", testutil.Named("Alice", "Liddell"))
	approved := f.CreateProject(t, alice, withStatus(projectOf("Campus App"), project.StatusApproved, time.Now()))
	pending := f.CreateProject(t, alice, projectOf("Parking Map"))

	notFound := marshalObj(t, httpErr{Error: "project not found"})
	f.runTests(t, []httpTest{
		{name: "Malformed id", path: "/v1/projects/abc", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"})},
		{name: "Unknown project", path: projectPath(999), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "Pending projects are hidden", path: projectPath(pending.ID), wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "Pending projects cannot be liked", method: http.MethodPost, path: projectPath(pending.ID, "/like"),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	})

	for i := 1; i <= 2; i++ {
		req, rec := newRequest(http.MethodGet, projectPath(approved.ID))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p project.Project
		unmarshal(t, rec, &p)
		assert.Equal(t, i, p.Views, "views are counted")
		assert.Equal(t, "Alice", p.Owner.FirstName)
	}

	req, rec := newRequest(http.MethodPost, projectPath(approved.ID, "/like"))
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, string(marshalObj(t, echoapi.LikeResponse{ID: approved.ID, Likes: 1})), rec.Body.String())
	assert.Equal(t, 1, f.GetProject(t, approved.ID).Likes)
	assert.Zero(t, f.GetProject(t, pending.ID).Views)
}

func Test_projectApi_create(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	token := f.getToken(t, alice)

	valid := project.NewProject{
		Title:         " Campus App ",
		Description:   "Find your way around campus.",
		Category:      "Other",
		OtherCategory: "Robotics",
		GithubURL:     "https://github.com/wildcats/campus-app",
		LiveDemo:      "https://campus.example.edu",
		TechUsed:      "Go, React",
	}
	with := func(fn func(np *project.NewProject)) []byte {
		np := valid
		fn(&np)
		return marshalObj(t, np)
	}

	f.runTests(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/projects", body: marshalObj(t, valid),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "Required fields", method: http.MethodPost, path: "/v1/projects", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"title":"this field is required",
				"description":"this field is required",
				"category":"this field is required",
				"github_url":"this field is required",
				"tech_used":"this field is required"
			}`),
		},
		{
			name: "Invalid URLs", method: http.MethodPost, path: "/v1/projects", token: token,
			body: with(func(np *project.NewProject) {
				np.GithubURL = "github.com/wildcats/campus-app"
				np.VideoDemo = "ftp://videos.example.edu/demo"
			}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"github_url":"enter a valid URL starting with http:// or https://",
				"video_demo":"enter a valid URL starting with http:// or https://"
			}`),
		},
		{
			name: "Other category requires a name", method: http.MethodPost, path: "/v1/projects", token: token,
			body:     with(func(np *project.NewProject) { np.OtherCategory = " " }),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"other_category":"Please specify the category when selecting 'Other'."}`),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/projects", token, marshalObj(t, valid))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p project.Project
	unmarshal(t, rec, &p)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Campus App", p.Title)
	assert.Equal(t, "Robotics", p.Category)
	assert.Equal(t, project.StatusPending, p.Status)
	assert.Equal(t, alice.ID, p.OwnerID)
	assert.Equal(t, "alice", p.Owner.Username)
	assert.Nil(t, p.ApprovedAt)
	assert.Equal(t, []string{"Go", "React"}, p.TechTokens())

	require.Len(t, f.Mirror.Projects, 1, "the submission is replicated")
	assert.Equal(t, "Campus App", f.Mirror.Projects[0].Title)
	assert.Equal(t, alice.ID, f.Mirror.Projects[0].UserID)

	t.Run("mirror failures do not fail the submission", func(t *testing.T) {
		f.Mirror.Err = assert.AnError
		defer func() { f.Mirror.Err = nil }()

		req, rec := newAuthRequest(http.MethodPost, "/v1/projects", token, with(func(np *project.NewProject) { np.Title = "Library Bot" }))
		f.do(req, rec)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_projectApi_ownerEdits(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	bob := f.CreateUser(t, "bob", "bob@test.cd")
	aliceToken := f.getToken(t, alice)
	bobToken := f.getToken(t, bob)

	now := time.Now()
	older := f.CreateProject(t, alice, withStatus(projectOf("Campus App"), project.StatusApproved, now.Add(-time.Hour)))
	newer := f.CreateProject(t, alice, withStatus(projectOf("Library Bot"), project.StatusPending, now))
	f.CreateProject(t, bob, projectOf("Bob's Thing"))

	edit := marshalObj(t, project.NewProject{
		Title:       "Campus App v2",
		Description: "Now with maps.",
		Category:    "Mobile",
		GithubURL:   "https://github.com/wildcats/campus-app",
		TechUsed:    "Go Flutter",
	})
	notFound := marshalObj(t, httpErr{Error: "project not found"})

	f.runTests(t, []httpTest{
		{
			name: "Others cannot edit", method: http.MethodPut, path: projectPath(older.ID), token: bobToken, body: edit,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "Others cannot delete", method: http.MethodDelete, path: projectPath(older.ID), token: bobToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	})

	t.Run("list own projects", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/me/projects", aliceToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var projects []project.Project
		unmarshal(t, rec, &projects)
		assert.Equal(t, []string{"Library Bot", "Campus App"}, titles(projects))
	})

	t.Run("edit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, projectPath(older.ID), aliceToken, edit)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		p := f.GetProject(t, older.ID)
		assert.Equal(t, "Campus App v2", p.Title)
		assert.Equal(t, "Mobile", p.Category)
		assert.Equal(t, project.StatusApproved, p.Status, "owners cannot change the status")
		assert.True(t, p.CreatedAt.Equal(older.CreatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, projectPath(newer.ID), aliceToken)
		f.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/me/projects", aliceToken)
		f.do(req, rec)
		var projects []project.Project
		unmarshal(t, rec, &projects)
		assert.Equal(t, []string{"Campus App v2"}, titles(projects))
	})

	t.Run("no projects", func(t *testing.T) {
		carol := f.CreateUser(t, "carol", "")
		req, rec := newAuthRequest(http.MethodGet, "/v1/me/projects", f.getToken(t, carol))
		f.do(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func Test_projectApi_uploadScreenshot(t *testing.T) {
	f := setup(t)
	alice := f.CreateUser(t, "alice", "alice@test.cd")
	bob := f.CreateUser(t, "bob", "bob@test.cd")
	p := f.CreateProject(t, alice, projectOf("Campus App"))
	token := f.getToken(t, alice)
	path := projectPath(p.ID, "/screenshot")

	localPath := func(url string) string {
		return filepath.Join(f.Conf.Storage.LocalDir, strings.TrimPrefix(url, f.Conf.Storage.PublicBaseURL+"/"))
	}

	t.Run("missing file", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, token, "image", "shot.png", testutil.PNG(t, 10, 10))
		f.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"screenshot":"this field is required"}`, rec.Body.String())
	})

	t.Run("not an image", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, token, "screenshot", "notes.txt", []byte("hello"))
		f.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"file":"upload a valid image (jpeg, png, gif, tiff or bmp)"}`, rec.Body.String())
	})

	t.Run("not the owner", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, f.getToken(t, bob), "screenshot", "shot.png", testutil.PNG(t, 10, 10))
		f.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	var firstURL string
	t.Run("wide images are downscaled", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, token, "screenshot", "Shot.PNG", testutil.PNG(t, 2000, 100))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got project.Project
		unmarshal(t, rec, &got)
		assert.True(t, strings.HasPrefix(got.Screenshot, "/media/project_screenshots/"), got.Screenshot)
		assert.True(t, strings.HasSuffix(got.Screenshot, ".png"), got.Screenshot)

		img, err := imaging.Open(localPath(got.Screenshot))
		require.NoError(t, err)
		assert.Equal(t, f.Conf.Storage.ImageMaxWidth, img.Bounds().Dx())
		firstURL = got.Screenshot
	})

	t.Run("replacing deletes the previous file", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, token, "screenshot", "shot.png", testutil.PNG(t, 20, 20))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.NoFileExists(t, localPath(firstURL))
		assert.FileExists(t, localPath(f.GetProject(t, p.ID).Screenshot))
	})

	t.Run("too large", func(t *testing.T) {
		orig := f.Conf.Storage.MaxUploadSize
		f.Conf.Storage.MaxUploadSize = 16
		defer func() { f.Conf.Storage.MaxUploadSize = orig }()

		req, rec := newUploadRequest(t, path, token, "screenshot", "shot.png", testutil.PNG(t, 20, 20))
		f.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"screenshot":"file is too large"}`, rec.Body.String())
	})
}
