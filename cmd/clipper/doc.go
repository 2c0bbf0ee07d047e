// Command clipper is the operator CLI. It submits jobs over the daemon's
// HTTP API and manages the daemon and queue over its control socket.
package main
