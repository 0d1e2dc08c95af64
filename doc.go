// Package vectorflow provides a human-in-the-loop generation pipeline for
// vector artwork: a fixed phase DAG whose generative branches fan out
// concurrently and settle together, gated by explicit human decisions at
// the brief, review and refinement-merge steps.
//
// The root package assembles the layers: a durable document store (memory,
// filesystem or PostgreSQL), a per-run event bus with SSE streaming, a
// generation provider (Anthropic, DeepSeek, a remote batch backend or a
// scripted stand-in), the phase coordinator and the action engine, all
// exposed over an HTTP gateway:
//
//	srv, err := vectorflow.New(ctx, vectorflow.WithConfig(config))
//	if err != nil { ... }
//	go srv.Start()
//	defer srv.Shutdown(ctx)
//
// Embedders that do not want HTTP can drive srv.Engine() directly with
// run.Request actions.
package vectorflow
