package config

import (
	"net"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the process runs inside a Docker container.
// Detection is based on /.dockerenv and is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running in Docker,
// so a containerized run can still reach a database on the host machine.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return resolveLoopback(host)
}

// ResolveEndpointForDocker applies ResolveHostForDocker to the host part of a host:port endpoint.
func ResolveEndpointForDocker(endpoint string) string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return ResolveHostForDocker(endpoint)
	}
	return net.JoinHostPort(ResolveHostForDocker(host), port)
}

func resolveLoopback(host string) string {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
