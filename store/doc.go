// Package store defines the aggregate backend interface used by members to
// discover each other and to share named locks. Backends: Redis and Memory.
package store
