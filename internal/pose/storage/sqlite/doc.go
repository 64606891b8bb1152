// Package sqlite persists pose sessions and their frames.
//
// Each recorded frame keeps the landmark input in datagram encoding next to
// the retargeted output, so a session can be replayed through a fresh
// pipeline and compared against what was produced live. The schema lives in
// internal/db migrations.
package sqlite
