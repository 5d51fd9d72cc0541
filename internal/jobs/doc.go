// Package jobs holds the verification job model and the in-memory Store that
// owns every mutable piece of verification state.
//
// A JobFile lists every tracked FLAC file under one root directory together
// with its status. Statistics are never stored independently of the entries;
// they are derived by scanning the entries whenever they are observed, so the
// two cannot drift.
//
// The Store is the single concurrency-control boundary for a run: workers
// claim entries with ClaimNext, verify them outside the lock, and hand the
// outcome back with Record. Checking is an in-memory status only. Decode (and
// therefore Load) is the one place that normalises a persisted Checking entry
// back to ToBeChecked, and Encode never writes it.
package jobs
