// Package control maintains the persistent websocket to the local external
// controller and dispatches its JSON requests into the rest of the daemon.
package control

import "encoding/json"

// Request is one inbound control message.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Token  string          `json:"token"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Error is the structured error half of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response carries the original request id and exactly one of result or
// error.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error codes carried in responses. A per-message error never closes the
// socket.
const (
	CodeBadRequest    = 400
	CodeNoToken       = 401
	CodeTokenMismatch = 403
	CodeUnknownMethod = 404
	CodeInternal      = 500
)

func errorResponse(id string, code int, message string) Response {
	return Response{ID: id, Error: &Error{Code: code, Message: message}}
}
