// Package metrics exposes reconciliation metrics in the Prometheus format.
//
// Prometheus owns its own registry so tests and multiple servers in one process never
// collide on the default registerer. Handler mounts the registry on a Fiber route.
//
//	m, err := metrics.NewPrometheus(nil)
//	app.Get("/metrics", m.Handler())
package metrics
