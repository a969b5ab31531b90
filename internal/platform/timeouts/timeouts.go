// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when probing the oracle health endpoint.
const GRPCDial = 2 * time.Second

// OracleRequest caps a single HTTP call to the randomness oracle.
const OracleRequest = 5 * time.Second

// ChainCall caps a single JSON-RPC call to an Ethereum node.
const ChainCall = 10 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
