// Package jimmy is the Go client for the Jimmy question service.
//
// A search runs through four cooperating parts:
//   1. Question resolution - cache first, then the question lookup service
//   2. Poll scheduling - status checks with a position-based backoff (package poll)
//   3. Escalation offer - shown deep in the queue or after a failed charge (package offer)
//   4. Presentation - every event goes to a sink.Sink (terminal, TUI, tests)
//
// Only one question is tracked at a time. Starting a new search supersedes
// the previous one; its timers and late results are dropped.
package jimmy
