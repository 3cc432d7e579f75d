// Package orgcontext carries the resolved tenant organization through
// request contexts. The tenant middleware stores it once per request and
// services read it instead of re-resolving the slug.
package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type orgIDKey struct{}
type orgSlugKey struct{}

// WithOrg stores the resolved organization ID and slug in the context.
func WithOrg(ctx context.Context, orgID snowflake.ID, slug string) context.Context {
	ctx = context.WithValue(ctx, orgIDKey{}, orgID)
	return context.WithValue(ctx, orgSlugKey{}, slug)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(orgIDKey{}).(type) {
	case snowflake.ID:
		return typed, true
	case int64:
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// OrgSlugFromContext returns the tenant slug from context, if set.
func OrgSlugFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	slug, ok := ctx.Value(orgSlugKey{}).(string)
	return slug, ok && slug != ""
}
