package query

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberedPlaceholder = regexp.MustCompile(`\$(\d+)`)

// assertAligned checks that the placeholders in res.SQL, read left to right,
// are exactly one per parameter and in parameter order.
func assertAligned(t *testing.T, d dialect.Dialect, res QueryResult) {
	t.Helper()
	switch d.Name() {
	case dialect.KindPostgres:
		matches := numberedPlaceholder.FindAllStringSubmatch(res.SQL, -1)
		require.Len(t, matches, len(res.Params), res.SQL)
		for i, m := range matches {
			n, err := strconv.Atoi(m[1])
			require.NoError(t, err)
			assert.Equal(t, i+1, n, "placeholder %d in %q", i, res.SQL)
		}
	case dialect.KindSQLite:
		assert.Equal(t, len(res.Params), strings.Count(res.SQL, "?"), res.SQL)
	}
}

func mustBuild(t *testing.T, s Statement) QueryResult {
	t.Helper()
	res, err := s.Build()
	require.NoError(t, err)
	return res
}
