// Package door implements the HTTP transport of the doorbell server.
//
// It exposes the endpoints called by the embedded client (/ring and
// /longpoll_open), the SMS webhook called by Twilio (/incoming_text) and a
// few operational endpoints, and adapts them to a Coordinator.
package door
