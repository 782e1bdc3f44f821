// Package ws connects interactive challenge solvers over WebSocket.
//
// A solver (typically a browser extension or desktop shell that can render a
// page) connects to the challenge endpoint and waits. When a module calls
// resolveChallenge, the Hub sends the newest solver a message with a fresh
// ticket:
//
//	{"type": "challenge", "ticket": "<uuid>", "url": "https://site.example/"}
//
// The solver answers with the same ticket, either
//
//	{"type": "solved", "ticket": "<uuid>", "headers": {"Cookie": "cf_clearance=..."}}
//
// or
//
//	{"type": "failed", "ticket": "<uuid>", "error": "user closed the window"}
//
// Message Types (Client → Server): solved, failed, ping.
// Message Types (Server → Client): challenge, pong, error.
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	router.GET("/challenges", hub.HandleConnection)
//	api := host.New(executor, hub, jar, sink)
package ws
