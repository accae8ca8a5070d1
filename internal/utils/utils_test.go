package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToPlainText(t *testing.T) {
	text, err := HTMLToPlainText(`<html><head><style>p{}</style></head><body><p>Driver ID: DRV-1</p><div>speeding<script>x()</script></div></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Driver ID: DRV-1 speeding", text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "", Truncate("ab", 0))
	assert.Equal(t, "éé", Truncate("ééé", 2))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "amazon.com", ExtractDomainFromEmail("Amazon Safety <NoReply@Amazon.com>"))
	assert.Equal(t, "fleet.io", ExtractDomainFromEmail("ops@fleet.io"))
	assert.Equal(t, "", ExtractDomainFromEmail("not-an-address"))
	assert.Equal(t, "", ExtractDomainFromEmail(""))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@mail", NormalizeMessageID(" <abc@mail> "))
}

func TestSetTenantInContext_DoesNotMutateParent(t *testing.T) {
	parent := SetTenantInContext(context.Background(), "tenant-a")
	child := SetTenantInContext(parent, "tenant-b")

	assert.Equal(t, "tenant-a", GetTenantFromContext(parent))
	assert.Equal(t, "tenant-b", GetTenantFromContext(child))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("viol", 16)
	assert.Len(t, id, len("viol_")+16)
	assert.Equal(t, "viol_", id[:5])
}

func TestSetAppSourceInContext_KeepsTenant(t *testing.T) {
	ctx := SetTenantInContext(context.Background(), "tenant-a")
	ctx = SetAppSourceInContext(ctx, "violationstack")

	assert.Equal(t, "violationstack", GetAppSourceFromContext(ctx))
	assert.Equal(t, "tenant-a", GetTenantFromContext(ctx))
}

func TestListAndPointerHelpers(t *testing.T) {
	assert.True(t, IsStringInSlice("b", []string{"a", "b"}))
	assert.False(t, IsStringInSlice("B", []string{"a", "b"}))

	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, GetOrDefault((*time.Time)(nil), fallback))
	assert.Equal(t, 7, GetOrDefault(ToPtr(7), 0))

	now := NowPtr()
	assert.Equal(t, time.UTC, now.Location())
}
