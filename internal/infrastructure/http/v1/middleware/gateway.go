package middleware

import (
	"github.com/gin-gonic/gin"

	"dairyflow/internal/core/apperror"
	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/tenant"
)

// HeaderGatewayKey carries the payment gateway's shared key.
const HeaderGatewayKey = "X-Gateway-Key"

// GatewayUserID is the actor recorded for gateway-initiated changes.
const GatewayUserID = "payment-gateway"

// KeyVerifier checks a gateway key.
type KeyVerifier interface {
	Verify(key string) error
}

// Gateway authenticates payment callbacks by shared key instead of a JWT and
// runs them as the gateway system user.
func Gateway(verifier KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			_ = c.Error(apperror.NewForbidden("payment callbacks are disabled"))
			c.Abort()
			return
		}
		if err := verifier.Verify(c.GetHeader(HeaderGatewayKey)); err != nil {
			abortUnauthorized(c, "invalid gateway key")
			return
		}

		ctx := c.Request.Context()
		user := &appctx.UserContext{UserID: GatewayUserID, TenantID: tenant.GetTenantID(ctx)}
		c.Request = c.Request.WithContext(appctx.WithUser(ctx, user))
		c.Next()
	}
}
