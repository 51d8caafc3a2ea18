package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildInfoInitialised(t *testing.T) {
	require.NotEmpty(t, Version)
	require.NotEmpty(t, BuildTime)
	require.NotEmpty(t, GitCommit)
}

func TestString(t *testing.T) {
	oldV, oldC, oldT := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldT })

	Version, GitCommit, BuildTime = "v1.2.3", "abc123", "2024-05-01"
	require.Equal(t, "choregate v1.2.3 (commit abc123, built 2024-05-01)", String())
}
