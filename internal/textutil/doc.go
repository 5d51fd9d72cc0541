// Package textutil provides small text helpers shared by the CLI and the
// persistence layer: turning directory names into safe file-name tokens and
// shortening paths for display.
package textutil
