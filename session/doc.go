// Package session persists conversation logs across process restarts.
// FileStore writes one JSON document per session and saves atomically so a
// crash mid-write never corrupts an existing session. InMemoryStore offers
// the same contract without disk for tests.
package session
