package mav

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// StartEmbeddedServer runs an in-process NATS server, used by the drone
// simulator and by integration tests so neither needs external
// infrastructure. port <= 0 picks a random free port.
func StartEmbeddedServer(port int) (*server.Server, string, error) {
	if port <= 0 {
		port = server.RANDOM_PORT
	}
	opts := &server.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		return nil, "", fmt.Errorf("embedded NATS server did not become ready")
	}
	return srv, srv.ClientURL(), nil
}
