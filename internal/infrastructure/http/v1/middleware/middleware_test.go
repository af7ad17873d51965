package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery_WritesInternalError(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestTenant_MapsBinderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", tenant.ErrTenantNotFound, http.StatusNotFound},
		{"suspended", tenant.ErrTenantNotActive, http.StatusForbidden},
		{"pool limit", tenant.ErrMaxPoolLimit, http.StatusServiceUnavailable},
		{"other", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binder := TenantBinderFunc(func(ctx context.Context, _ string) (context.Context, func(), error) {
				return nil, nil, tt.err
			})
			r := gin.New()
			r.Use(ErrorHandler(), Tenant(binder))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(TenantHeader, "acme")
			assert.Equal(t, tt.status, serve(r, req).Code)
		})
	}
}

func TestTenant_ReleasesAfterRequest(t *testing.T) {
	released := false
	binder := TenantBinderFunc(func(ctx context.Context, id string) (context.Context, func(), error) {
		return tenant.WithTenant(ctx, &tenant.Tenant{ID: id}), func() { released = true }, nil
	})
	r := gin.New()
	r.Use(ErrorHandler(), Tenant(binder))
	r.GET("/x", func(c *gin.Context) {
		assert.False(t, released)
		c.String(http.StatusOK, tenant.GetTenantID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(TenantHeader, "acme")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())
	assert.True(t, released)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		user   *appctx.UserContext
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"operator", &appctx.UserContext{UserID: "u", Roles: []string{"operator"}}, http.StatusForbidden},
		{"accountant", &appctx.UserContext{UserID: "u", Roles: []string{"accountant"}}, http.StatusOK},
		{"admin", &appctx.UserContext{UserID: "u", IsAdmin: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler(), func(c *gin.Context) {
				if tt.user != nil {
					c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), tt.user))
				}
			}, RequireRole("accountant"))
			r.POST("/unpay", func(c *gin.Context) { c.Status(http.StatusOK) })

			assert.Equal(t, tt.status, serve(r, httptest.NewRequest(http.MethodPost, "/unpay", nil)).Code)
		})
	}
}

type keyFunc func(string) error

func (f keyFunc) Verify(key string) error { return f(key) }

func TestGateway(t *testing.T) {
	verifier := keyFunc(func(key string) error {
		if key != "secret" {
			return errors.New("bad key")
		}
		return nil
	})

	newRouter := func(v KeyVerifier) *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler(), Gateway(v))
		r.POST("/callback", func(c *gin.Context) {
			c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
		})
		return r
	}

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set(HeaderGatewayKey, "secret")
	w := serve(newRouter(verifier), req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, GatewayUserID, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set(HeaderGatewayKey, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(newRouter(verifier), req).Code)

	req = httptest.NewRequest(http.MethodPost, "/callback", nil)
	assert.Equal(t, http.StatusForbidden, serve(newRouter(nil), req).Code)
}
