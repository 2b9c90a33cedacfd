// Package freshness decides whether a conditional request can be answered
// with 304 Not Modified.
//
// The decision is a pure function of the stored artifact's modification time
// and the client's If-Modified-Since token, both truncated to whole seconds
// because HTTP dates carry no sub-second precision. A token that does not
// parse is treated as absent: malformed client input never blocks serving
// fresh content.
package freshness
