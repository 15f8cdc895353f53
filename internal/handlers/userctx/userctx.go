package userctx

import (
	"context"

	"github.com/nkiryanov/habitus/internal/models"
)

type ctxKey string

const (
	claimsKey ctxKey = "claims"
	clientKey ctxKey = "client"
)

// Where the request came from
type Client struct {
	IP        string
	UserAgent string
}

// Create a new context with the authenticated user claims
func New(ctx context.Context, c models.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// Extract the authenticated user claims from the context
func FromContext(ctx context.Context) (models.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(models.AccessClaims)
	return c, ok
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// Zero Client if middleware did not run
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey).(Client)
	return c
}
