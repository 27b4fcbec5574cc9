// Package registry tracks per-user OAuth connection state.
//
// Each user email maps to at most one Record. Records move between active,
// expired and revoked but are never removed. Whether a record is usable is
// decided when it is read: an active record whose ExpiresAt has passed is
// reported as expired without any write.
//
// Storage is pluggable through Store; MemoryStore serves tests and single
// instances, RedisStore serves deployments with several replicas.
package registry
