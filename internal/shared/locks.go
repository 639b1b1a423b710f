package shared

import (
	"fmt"
	"hash/fnv"
)

// AssignmentLockKey derives the advisory lock key serializing role-assignment
// mutations for a single user. Used with pg_advisory_xact_lock.
func AssignmentLockKey(userID int64) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "assignments:user:%d", userID)
	return int64(h.Sum64())
}
