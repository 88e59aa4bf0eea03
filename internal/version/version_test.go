package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFullContainsParts ensures the full version string includes all build metadata.
func TestFullContainsParts(t *testing.T) {
	t.Parallel()

	full := Full()
	require.True(t, strings.Contains(full, Version))
	require.True(t, strings.Contains(full, Commit))
	require.True(t, strings.Contains(full, BuildTime))
	require.Equal(t, Version, Short())
}
