// Package download fetches remote files over HTTP(S) with cleanup on failure.
//
// The destination file is opened before any network traffic and the response
// body is streamed straight into it. Every failure path (open, transport,
// unexpected status, empty body, close) removes the partially written file,
// so a failed fetch never leaves a truncated artifact behind.
package download
