// Package scanner walks library directories without recursion, feeding
// discovered media files to the index.
package scanner
