package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTenant_RoundTrip(t *testing.T) {
	tenant := &Tenant{SiteID: "site-01", TeamID: "team-01"}
	ctx := WithTenant(context.Background(), tenant)

	got := TenantFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "site-01", got.SiteID)
	assert.Equal(t, "team-01", got.TeamID)
}

func TestTenantFromContext_AbsentIsNil(t *testing.T) {
	assert.Nil(t, TenantFromContext(context.Background()))
}

func TestWithTenant_PanicsOnInvalid(t *testing.T) {
	tests := []struct {
		name   string
		tenant *Tenant
	}{
		{name: "nil tenant", tenant: nil},
		{name: "empty site", tenant: &Tenant{SiteID: "", TeamID: "team-01"}},
		{name: "empty team", tenant: &Tenant{SiteID: "site-01", TeamID: ""}},
		{name: "invalid characters", tenant: &Tenant{SiteID: "site 01", TeamID: "team-01"}},
		{name: "too long", tenant: &Tenant{SiteID: strings.Repeat("a", 65), TeamID: "team-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() {
				WithTenant(context.Background(), tt.tenant)
			})
		})
	}
}

func TestWithRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_01HXYZ")
	assert.Equal(t, "req_01HXYZ", RequestIDFromContext(ctx))
}

func TestWithRequestID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithRequestID(context.Background(), "") })
	assert.Panics(t, func() { WithRequestID(context.Background(), "has spaces") })
	assert.Panics(t, func() { WithRequestID(context.Background(), strings.Repeat("x", 129)) })
}

func TestContextFields_EmptyContext(t *testing.T) {
	fields := ContextFields(context.Background())
	assert.Empty(t, fields)
}

func TestContextFields_TenantAndRequest(t *testing.T) {
	ctx := WithTenant(context.Background(), &Tenant{SiteID: "s", TeamID: "t"})
	ctx = WithRequestID(ctx, "r1")

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.ElementsMatch(t, []string{"tenant.site", "tenant.team", "request.id"}, keys)
}
