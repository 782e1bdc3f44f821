/*
Package monitoring provides metrics collection for the Relay runtime.

# Overview

This package implements Prometheus-based metrics, tracking module loads,
provider operation invocations, guest network requests, challenge
resolutions, guest log volume and the HTTP API.

All recording methods accept a nil receiver, so the runtime can be used as
a library without any metrics wiring.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "search")
	// ... invoke ...
	timer.Stop(monitoring.OutcomeSuccess)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
