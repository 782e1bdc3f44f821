// Package server is the relayd composition root. It builds the cookie jar,
// network executor, challenge hub, guest log sink and module runtime from
// configuration, loads the module catalog and mounts the HTTP API.
package server
