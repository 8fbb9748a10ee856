package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, op := range []string{"stat", "open", "read"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
	FilesystemMovesTotal.WithLabelValues("rename")
	FilesystemMovesTotal.WithLabelValues("copy")

	for _, op := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(op)
	}

	for _, state := range []string{"queued", "processing", "done", "failed"} {
		IngestStateTransitions.WithLabelValues(state)
	}

	kinds := []string{"image", "video", "raw", "unknown"}
	outcomes := []string{"ingested", "duplicate", "rejected", "archived", "error"}
	for _, kind := range kinds {
		for _, outcome := range outcomes {
			IngestFilesTotal.WithLabelValues(kind, outcome)
		}
		IngestProcessingDuration.WithLabelValues(kind)
		IngestBytesTotal.WithLabelValues(kind)
	}

	for _, backend := range []string{"vips", "imaging"} {
		for _, step := range []string{"decode", "webp", "thumbnail"} {
			RenderDuration.WithLabelValues(backend, step)
		}
		RenderErrors.WithLabelValues(backend)
	}
	for _, variant := range []string{"webp", "thumbnail"} {
		RenderOutputBytes.WithLabelValues(variant)
	}

	for _, status := range []string{"success", "error", "unavailable"} {
		ProbeTotal.WithLabelValues(status)
	}

	for _, status := range []string{"configured", "fallback", "error"} {
		TargetPollsTotal.WithLabelValues(status)
	}
	for _, resolution := range []string{"previous", "existing", "created", "failed"} {
		TargetFallbacksTotal.WithLabelValues(resolution)
	}

	for _, hop := range []string{"socket", "stream"} {
		FanoutClients.WithLabelValues(hop)
		FanoutDroppedSubscribers.WithLabelValues(hop)
		FanoutMessagesTotal.WithLabelValues(hop, "in")
		FanoutMessagesTotal.WithLabelValues(hop, "out")
	}
	for _, reason := range []string{"malformed", "unknown_type", "unauthorized"} {
		FanoutRejectedMessages.WithLabelValues(reason)
	}
	for _, status := range []string{"success", "error"} {
		FanoutForwardTotal.WithLabelValues(status)
	}

	LibraryMediaFiles.WithLabelValues("image")
	LibraryMediaFiles.WithLabelValues("video")
}
