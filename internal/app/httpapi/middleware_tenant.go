package httpapi

import (
	"context"

	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
)

type ctxKey string

const ctxTenantKey ctxKey = "tenant"

// withTenantContext stores the resolved tenant for downstream handlers.
func withTenantContext(ctx context.Context, t tenant.Tenant) context.Context {
	return context.WithValue(ctx, ctxTenantKey, t)
}

func tenantFromContext(ctx context.Context) (tenant.Tenant, bool) {
	t, ok := ctx.Value(ctxTenantKey).(tenant.Tenant)
	return t, ok
}
