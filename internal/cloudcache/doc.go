// Package cloudcache maintains local partial copies of remotely hosted
// files. Each copy holds a contiguous prefix of the remote bytes that grows
// as the background fetcher appends chunks, pausing when the cache disk runs
// low on free space.
package cloudcache
