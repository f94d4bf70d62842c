// Package httprange resolves HTTP Range headers into validated byte windows.
//
// Resolution is a pure function over the header text and the file size; the
// same rules apply to local files and to the tiered cloud byte source. The
// package carries no state and performs no I/O.
package httprange
