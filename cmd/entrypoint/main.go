// Package main runs the oracle and the audit MCP bridge in one container.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimrubenstein/randomproof/internal/platform/config"
)

// shutdownTimeout is the grace period before forcing child exit.
const shutdownTimeout = 10 * time.Second

// containerConfig holds the addresses the children bind to.
type containerConfig struct {
	OracleGRPCAddr string `env:"RANDOMPROOF_ENTRYPOINT_ORACLE_GRPC_ADDR" envDefault:"0.0.0.0:8090"`
	OracleHTTPAddr string `env:"RANDOMPROOF_ENTRYPOINT_ORACLE_HTTP_ADDR" envDefault:"0.0.0.0:8091"`
	OracleURL      string `env:"RANDOMPROOF_ENTRYPOINT_ORACLE_URL"       envDefault:"http://127.0.0.1:8091"`
	MCPHTTPAddr    string `env:"RANDOMPROOF_ENTRYPOINT_MCP_HTTP_ADDR"    envDefault:"0.0.0.0:8092"`
	BinDir         string `env:"RANDOMPROOF_ENTRYPOINT_BIN_DIR"          envDefault:"/app"`
}

// childProcess describes a managed child command.
type childProcess struct {
	name string
	cmd  *exec.Cmd
}

// processExit reports a child process exit result.
type processExit struct {
	name string
	err  error
}

// main starts the oracle and the MCP HTTP bridge, then supervises them.
func main() {
	var cfg containerConfig
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}
	log.SetPrefix("[ENTRYPOINT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	oracle, err := startChild("oracle", exec.Command(cfg.BinDir+"/oracle", oracleArgs(cfg)...))
	if err != nil {
		log.Fatalf("failed to start oracle: %v", err)
	}

	mcp, err := startChild("mcp", exec.Command(cfg.BinDir+"/mcp", mcpArgs(cfg)...))
	if err != nil {
		terminateChildren([]*childProcess{oracle})
		log.Fatalf("failed to start MCP server: %v", err)
	}

	children := []*childProcess{oracle, mcp}
	exitCh := make(chan processExit, len(children))
	go waitChild(oracle, exitCh)
	go waitChild(mcp, exitCh)

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
		terminateChildren(children)
		waitForChildren(exitCh, len(children), shutdownTimeout, children)
		return
	case exit := <-exitCh:
		log.Printf("%s exited: %v", exit.name, exit.err)
		terminateChildren(children)
		waitForChildren(exitCh, len(children)-1, shutdownTimeout, children)
		os.Exit(exitCode(exit.err))
	}
}

func oracleArgs(cfg containerConfig) []string {
	return []string{
		"-grpc-addr=" + cfg.OracleGRPCAddr,
		"-http-addr=" + cfg.OracleHTTPAddr,
	}
}

func mcpArgs(cfg containerConfig) []string {
	return []string{
		"-transport=http",
		"-http-addr=" + cfg.MCPHTTPAddr,
		"-oracle-url=" + cfg.OracleURL,
	}
}

// startChild starts a child process with inherited stdio streams.
func startChild(name string, cmd *exec.Cmd) (*childProcess, error) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	return &childProcess{name: name, cmd: cmd}, nil
}

// waitChild waits for a child process and reports its exit.
func waitChild(child *childProcess, exitCh chan<- processExit) {
	err := child.cmd.Wait()
	exitCh <- processExit{name: child.name, err: err}
}

// terminateChildren sends SIGTERM to all child processes.
func terminateChildren(children []*childProcess) {
	for _, child := range children {
		if child == nil || child.cmd == nil || child.cmd.Process == nil {
			continue
		}
		_ = child.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// waitForChildren waits for the remaining exits or forces shutdown.
func waitForChildren(exitCh <-chan processExit, remaining int, timeout time.Duration, children []*childProcess) {
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for remaining > 0 {
		select {
		case <-exitCh:
			remaining--
		case <-timer.C:
			forceKill(children)
			return
		}
	}
}

// forceKill sends SIGKILL to any child still running.
func forceKill(children []*childProcess) {
	for _, child := range children {
		if child == nil || child.cmd == nil || child.cmd.Process == nil {
			continue
		}
		if child.cmd.ProcessState != nil {
			continue
		}
		_ = child.cmd.Process.Kill()
	}
}

// exitCode derives a process exit code from a wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 1
}
