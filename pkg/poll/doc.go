// Package poll runs a task on a fixed interval with at most one run in
// flight. Ticks that land while the previous run is still going are dropped.
package poll
