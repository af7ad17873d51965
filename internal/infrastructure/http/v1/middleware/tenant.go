package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/tenant"
	"dairyflow/pkg/logger"
)

// TenantHeader identifies the tenant of a request.
const TenantHeader = "X-Tenant-ID"

const maxTenantIDLength = 64

// TenantBinder installs the tenant, its store and a tx manager into ctx. The
// returned release func is called when the request finishes.
type TenantBinder interface {
	Bind(ctx context.Context, tenantID string) (context.Context, func(), error)
}

// TenantBinderFunc adapts a function to TenantBinder.
type TenantBinderFunc func(ctx context.Context, tenantID string) (context.Context, func(), error)

func (f TenantBinderFunc) Bind(ctx context.Context, tenantID string) (context.Context, func(), error) {
	return f(ctx, tenantID)
}

// Tenant resolves X-Tenant-ID. It must run before anything touching storage.
func Tenant(binder TenantBinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" || len(tenantID) > maxTenantIDLength {
			_ = c.Error(apperror.NewValidation("tenant is required").WithDetail("header", TenantHeader))
			c.Abort()
			return
		}

		bound, release, err := binder.Bind(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant resolution failed", "tenant_id", tenantID, "error", err)
			_ = c.Error(tenantError(tenantID, err))
			c.Abort()
			return
		}
		defer release()

		c.Request = c.Request.WithContext(bound)
		c.Next()
	}
}

func tenantError(tenantID string, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return apperror.NewNotFound("tenant", tenantID)
	case errors.Is(err, tenant.ErrTenantNotActive):
		return apperror.NewForbidden("tenant is not active").WithDetail("tenant_id", tenantID)
	case errors.Is(err, tenant.ErrMaxPoolLimit):
		appErr := apperror.NewInternal(err)
		appErr.HTTPStatus = http.StatusServiceUnavailable
		appErr.Message = "service temporarily unavailable"
		return appErr.WithDetail("tenant_id", tenantID)
	default:
		return apperror.NewInternal(err).WithDetail("tenant_id", tenantID)
	}
}
