// Package cli provides the interactive Hushwire command-line client.
//
// It wires configuration, the HTTP API client, the realtime channel, and an
// interactive REPL. Typical flow: register or log in (which unlocks the key
// ring), open a chat with a peer, and exchange end-to-end encrypted messages
// while a background watcher prints incoming ones.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
