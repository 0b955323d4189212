package postgres

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Bare subquery aliases are identifiers in the PostgreSQL grammar, so a
// reserved keyword there is a syntax error at runtime even though the
// query reads fine. This bit once with "window".
func TestRecentSamplesQueryAliasNotReserved(t *testing.T) {
	m := regexp.MustCompile(`\)\s+(\w+)`).FindStringSubmatch(recentSamplesSQL)
	require.Len(t, m, 2, "expected a subquery alias in recentSamplesSQL")

	reserved := map[string]bool{
		"window": true, "order": true, "group": true, "limit": true,
		"select": true, "where": true, "from": true, "union": true,
		"having": true, "offset": true, "returning": true, "with": true,
	}
	alias := strings.ToLower(m[1])
	assert.False(t, reserved[alias], "subquery alias %q is a reserved keyword", alias)
}
