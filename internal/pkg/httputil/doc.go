// Package httputil holds the response helpers shared by the API handlers:
// JSON bodies and error envelopes, plus the Server-Sent Events writer used
// by the refresh streams.
package httputil
