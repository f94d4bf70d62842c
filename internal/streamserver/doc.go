// Package streamserver is the HTTP face of the daemon: byte-range streaming
// of local library files, cache-stitched reads of cloud files, and HLS
// playlist and segment delivery for transcode sessions.
package streamserver
