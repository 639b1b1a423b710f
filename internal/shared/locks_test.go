package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignmentLockKeyStable(t *testing.T) {
	require.Equal(t, AssignmentLockKey(42), AssignmentLockKey(42))
}

func TestAssignmentLockKeyDistinctPerUser(t *testing.T) {
	seen := make(map[int64]int64)
	for userID := int64(1); userID <= 1000; userID++ {
		key := AssignmentLockKey(userID)
		prior, clash := seen[key]
		require.False(t, clash, "users %d and %d share lock key", prior, userID)
		seen[key] = userID
	}
}
