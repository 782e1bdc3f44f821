// Package http implements the relayd REST API over gin.
//
// Routes:
//
//	GET    /health                      runtime, jar and solver status
//	GET    /modules                     loaded modules
//	POST   /modules                     load module source
//	GET    /modules/:id                 one module
//	DELETE /modules/:id                 unload a module
//	GET    /modules/:id/:operation      invoke search, info, media, sources,
//	                                    streams, pages or discover
//	GET    /cookies                     stored origins
//	PUT    /cookies                     store a Cookie header for an origin
//	DELETE /cookies?origin=...          forget an origin
//	GET    /metrics                     Prometheus exposition
//
// Operations take their input from the query string: search reads q and
// page, every other operation except discover reads ref.
package http
