// Package state keeps per-user conversation sessions in process memory.
// Sessions are not persisted: a restart drops any conversation in progress.
package state
