package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

var errNotServing = errors.New("not serving")

// WaitForHealth blocks until the gRPC health check for service reports
// SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.RandomizationFactor = 0

	check := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return struct{}{}, err
		}
		if response.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return struct{}{}, fmt.Errorf("%w: status %s", errNotServing, response.GetStatus().String())
		}
		return struct{}{}, nil
	}
	notify := func(err error, next time.Duration) {
		if logf != nil {
			logf("waiting for gRPC health %q: %v (retry in %s)", service, err, next)
		}
	}

	if _, err := backoff.Retry(ctx, check,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait for gRPC health: %w", ctxErr)
		}
		return fmt.Errorf("wait for gRPC health: %w", err)
	}
	if logf != nil {
		logf("gRPC health check for %q is SERVING", service)
	}
	return nil
}
