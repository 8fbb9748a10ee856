// Package workers sizes CPU-bound thread pools to the CPUs the process may
// actually use.
//
// Files are ingested one at a time, so the only parallelism in the pipeline
// is inside a single render. libvips splits one image operation across its
// own thread pool, and [ForCPU] picks that pool's size:
//
//	vips.Startup(&vips.Config{ConcurrencyLevel: workers.ForCPU(4)})
//
// runtime.NumCPU reports the host's CPUs even under a container quota, so
// the count is derived from GOMAXPROCS instead. Operators can pin it with
// RENDER_THREADS.
package workers
