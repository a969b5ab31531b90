package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// OracleProbe checks that a randomness oracle reports SERVING on its gRPC
// health endpoint, so a draw is never committed to an oracle that cannot
// fulfil it.
type OracleProbe struct {
	Addr string
	// Service is the health service name; empty checks the whole server.
	Service string
	// Timeout bounds connecting and waiting for SERVING together.
	Timeout time.Duration
	Logf    func(string, ...any)
	// Connect replaces grpc.NewClient.
	Connect func(target string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// ProbePhase names the step an oracle probe failed in.
type ProbePhase string

const (
	ProbeConnect ProbePhase = "connect"
	ProbeServing ProbePhase = "serving"
)

// ProbeError reports an oracle that could not be reached or is not serving.
type ProbeError struct {
	Addr  string
	Phase ProbePhase
	Err   error
}

func (e *ProbeError) Error() string {
	switch e.Phase {
	case ProbeConnect:
		return fmt.Sprintf("oracle %s unreachable: %v", e.Addr, e.Err)
	default:
		return fmt.Sprintf("oracle %s not serving: %v", e.Addr, e.Err)
	}
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ProbeDialOptions are the plaintext, traced options used to reach the oracle
// health endpoint.
func ProbeDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Check probes the oracle and closes the connection.
func (p OracleProbe) Check(ctx context.Context) error {
	conn, err := p.Dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Dial probes the oracle and returns the open connection once it serves.
func (p OracleProbe) Dial(ctx context.Context) (*gogrpc.ClientConn, error) {
	connect := p.Connect
	if connect == nil {
		connect = gogrpc.NewClient
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	conn, err := connect(p.Addr, ProbeDialOptions()...)
	if err != nil {
		return nil, &ProbeError{Addr: p.Addr, Phase: ProbeConnect, Err: err}
	}
	if err := WaitForHealth(ctx, conn, p.Service, p.Logf); err != nil {
		_ = conn.Close()
		return nil, &ProbeError{Addr: p.Addr, Phase: ProbeServing, Err: err}
	}
	return conn, nil
}
