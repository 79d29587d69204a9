package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/eoex/pkg/models"
)

type contextKey string

const authContextKey contextKey = "auth_context"

func SetAuthContext(ctx context.Context, ac models.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// GetAuthContext returns the AuthContext set by Authenticate.
func GetAuthContext(r *http.Request) (models.AuthContext, bool) {
	ac, ok := r.Context().Value(authContextKey).(models.AuthContext)
	return ac, ok
}
