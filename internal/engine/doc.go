// Package engine runs the verification workers of a check run.
//
// A fixed pool of workers repeatedly claims the next pending entry from a
// jobs.Store, verifies it outside the store lock, records the outcome and
// saves the job file. A shared stop flag ends the run early: it is raised by
// the first Bad or Error outcome (unless ContinueOnError is set), by a
// persistence failure, or by context cancellation. Workers never abandon a
// file they have claimed; they finish, record and save it before exiting.
package engine
