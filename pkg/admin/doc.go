// Package admin serves the optional HTTP admin endpoint of the server.
//
// Routes:
//
//	GET  /healthz        200 while the render loop runs, 503 otherwise
//	GET  /metrics        Prometheus metrics of the server registry
//	GET  /debug/vars     server statistics as JSON
//	GET  /debug/live     websocket pushing the statistics every interval
//	POST /debug/capture  PNG of the last frame, or its stored location
//
// The endpoint only reads from the server; it never touches the render
// loop directly. Captures go through Server.Capture, which the loop
// serves between frames.
package admin
