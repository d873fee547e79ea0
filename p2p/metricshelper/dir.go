// Package metricshelper has small formatting helpers shared by the
// transport and swarm Prometheus instrumentation.
package metricshelper

import "github.com/meridianlabs/swarmcore/core/network"

func GetDirection(dir network.Direction) string {
	switch dir {
	case network.DirOutbound:
		return "outbound"
	case network.DirInbound:
		return "inbound"
	default:
		return "unknown"
	}
}
