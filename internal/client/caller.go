// Package client connects the scheduler and orchestrator to their peers over
// HTTP or D-Bus. The transport is chosen once from configuration; the typed
// clients on top are the same for both.
package client

import "context"

// Caller invokes a named remote method with a JSON body and returns the raw
// response body. Failures are *model.TransportError.
type Caller interface {
	Call(ctx context.Context, method string, body []byte) ([]byte, error)
}

// Peer names. They select the HTTP configuration prefix and the D-Bus
// service, object path and interface.
const (
	PeerOrchestrator = "orchestrator"
	PeerExecutor     = "executor"
)
