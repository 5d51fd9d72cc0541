// Command checkflac verifies FLAC collections against the MD5 signature each
// file carries.
//
// The workflow has three steps. explore scans a directory and writes a job
// file listing every FLAC file found. check verifies the pending entries of a
// job file on a pool of workers, saving after every file so that an
// interrupted run resumes where it stopped. stats prints the results. Every
// check run is also recorded in a small SQLite history database, which the
// history command lists.
package main
