package ports

import "context"

// LockHandle proves ownership of an acquired lock. The token is random per
// acquire; release is a no-op unless the stored token still matches.
type LockHandle struct {
	Key   string
	Token string
}

// Locker is an advisory TTL'd mutual-exclusion primitive keyed by
// (jobKind, repoID, date). Contention is not an error: Acquire reports
// acquired=false and the caller skips the cycle instead of retrying.
type Locker interface {
	Acquire(ctx context.Context, jobKind string, repoID string, date string) (handle LockHandle, acquired bool, err error)
	Release(ctx context.Context, handle LockHandle) (released bool, err error)
}
