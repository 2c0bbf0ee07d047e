// Package ipc provides JSON-RPC daemon control over a Unix domain socket.
//
// The CLI uses this channel for daemon lifecycle and queue administration;
// job submission and status for API consumers go through the HTTP surface
// instead.
package ipc
