// Package httputil provides HTTP handler utilities: the response envelope
// every endpoint speaks, JSON decoding, query parsing, and the generic
// middleware stack (logging, recovery, CORS, body limits).
package httputil
