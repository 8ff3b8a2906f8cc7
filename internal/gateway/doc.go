// Package gateway serves tatasbox over HTTP.
//
// # Overview
//
// The gateway owns the key-value backend, the device hub, the change-event
// broadcaster and the daily-story proxy. It listens either on a plain TCP
// address or on a Tailscale node (tsnet), optionally with tailnet HTTPS or
// public Funnel.
//
// # Routes
//
//	GET  /health                        liveness plus backend state, no auth
//	GET  /metrics                       Prometheus, when metrics.enabled
//	     /api/profile[...]              profile store
//	     /api/goals[...]                goals store
//	     /api/journal[...]              journal store
//	     /api/roleplay                  in-memory roleplay setup
//	     /api/prefs/theme[...]          theme preference
//	GET  /api/events                    SSE change stream for the caller's device
//	POST /api/daily-story/generate      fresh story from the LLM
//	GET  /api/daily-story/today         one cached story per UTC day
//
// Every /api route runs behind auth.DeviceMiddleware. With no jwt secret
// configured, all callers share the "local" device.
//
// # Writes
//
// Store mutations return a *kv.Write. Handlers wait on it before replying,
// so a 2xx means the write reached the backend. A failed write answers
// 500 {"error":"persist failed"}; the in-memory state keeps the change.
//
// # Change events
//
// Each mutation publishes {store, action} to the device's subscribers.
// A client that sends its subscription id in the X-Subscription-ID header
// does not receive events for its own requests.
//
// # Shutdown
//
// Shutdown closes event streams, stops the HTTP server and cron scheduler,
// drains every device's write queue and then closes the backend.
package gateway
