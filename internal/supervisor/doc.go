// Package supervisor wires long-running services into a suture supervisor
// tree with three layers (pipeline, transport, api) and adapts *http.Server
// to suture's Serve(ctx) contract.
//
// Supervisor events are logged through sutureslog. A service that returns an
// error or panics is restarted with suture's backoff; a service that returns
// ctx.Err() after cancellation is considered stopped cleanly.
package supervisor
