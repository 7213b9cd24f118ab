package dig_container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ihub/apps/api/echo"
	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/project"
	emailsvc "github.com/trezcool/ihub/services/email"
)

func TestNew(t *testing.T) {
	newConfig := func() *core.Config {
		conf := core.NewTestConfig()
		conf.Database.Engine = EngineDummy
		conf.Storage.LocalDir = t.TempDir()
		conf.Debug = true
		return conf
	}
	c := New(newConfig)

	err := c.Invoke(func(
		server echoapi.Server,
		closeDB DBCloser,
		mailSvc core.EmailService,
		profileMirror profile.Mirror,
		projectMirror project.Mirror,
	) {
		_, isConsole := mailSvc.(*emailsvc.ConsoleService)
		assert.True(t, isConsole, "debug builds print emails")
		assert.Nil(t, profileMirror, "mirror disabled")
		assert.Nil(t, projectMirror, "mirror disabled")

		req := httptest.NewRequest(http.MethodGet, "/v1/categories", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		assert.NoError(t, closeDB())
	})
	require.NoError(t, err)
}
