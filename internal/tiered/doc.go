// Package tiered stitches reads of cloud files from two backends: the
// locally cached contiguous prefix when the requested window starts inside
// it, the remote source otherwise.
package tiered
