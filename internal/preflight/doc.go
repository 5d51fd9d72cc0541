// Package preflight provides readiness checks for the filesystem paths
// checkflac depends on.
//
// The check command runs ForCheck before starting workers so a job file that
// cannot be rewritten fails immediately instead of after the first decode.
// The explore command runs ForExplore before walking the music tree.
package preflight
