package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
)

const textMessage = websocket.TextMessage

type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventMessage    EventKind = "message"
	EventDisconnect EventKind = "disconnect"
	EventHeartbeat  EventKind = "heartbeat"
)

// Event is one transport-level occurrence for a connection.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Params       map[string]string // connect query parameters
	Body         []byte            // message payload
}

// Response is what a handler returns for an event. Non-200 responses are
// written back to the client; a rejected connect never upgrades.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func OK(body string) Response { return Response{StatusCode: http.StatusOK, Body: body} }

func Fail(body string) Response {
	return Response{StatusCode: http.StatusInternalServerError, Body: body}
}

func (r Response) Ok() bool { return r.StatusCode == http.StatusOK }

// ErrorBody is returned for failures at the HTTP layer.
type ErrorBody struct {
	Error string `json:"error"`
} // @name ErrorBody
