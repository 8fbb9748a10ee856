// Package memory configures the Go memory limit for containerized
// deployments and gates ingest on heap pressure.
//
// [ConfigureFromEnv] sets GOMEMLIMIT to MEMORY_LIMIT (usually from the
// Kubernetes Downward API) minus the memory libvips and libwebp need outside
// the Go heap, unless GOMEMLIMIT is already set. RENDER_RESERVE overrides the
// reserve, which is otherwise sized by the render thread count. Call it first
// thing in main:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// A [Gate] samples the heap on an interval. When allocation crosses the
// pause mark the gate closes and a GC is forced; the ingest dispatcher calls
// [Gate.Wait] before each file and blocks until usage falls below the
// resume mark. Without a limit the gate never closes.
package memory
