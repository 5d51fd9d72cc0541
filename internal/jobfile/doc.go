// Package jobfile persists job files to disk.
//
// Writes are atomic (temp file, fsync, rename) so a reader never sees a torn
// document, and a Writer serialises the saves issued by concurrent workers so
// the file on disk only ever moves forward. Lock guards a job file against a
// second checkflac process for the duration of a run.
package jobfile
