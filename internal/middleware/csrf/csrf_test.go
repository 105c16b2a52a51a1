package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(cfg Config) *echo.Echo {
	e := echo.New()
	g := e.Group("", Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	g.GET("/form", ok)
	g.POST("/change", ok)
	g.POST("/login", ok)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func issuedToken(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, token)
	return token
}

func TestGetIssuesToken(t *testing.T) {
	e := newEcho(DefaultConfig())
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/form", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	assert.NotEmpty(t, token)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "XSRF-TOKEN="+token)
}

func TestPost_DoubleSubmit(t *testing.T) {
	e := newEcho(DefaultConfig())
	token := issuedToken(t, e)

	post := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/change", nil)
		req.Header.Set("Origin", "http://example.com")
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		return serve(e, req).Code
	}

	assert.Equal(t, http.StatusOK, post(token))
	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusForbidden, post(token+"x"))
}

func TestPost_CrossOriginRejected(t *testing.T) {
	e := newEcho(DefaultConfig())
	token := issuedToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/change", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
	req.Header.Set("X-CSRF-Token", token)

	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)
}

func TestSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipPaths = []string{"/login"}
	e := newEcho(cfg)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusOK, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/change", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc.def.ghi")
	assert.Equal(t, http.StatusOK, serve(e, req).Code)

	cfg.SkipBearer = false
	e = newEcho(cfg)
	req = httptest.NewRequest(http.MethodPost, "/change", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc.def.ghi")
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)
}
