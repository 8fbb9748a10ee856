package supervisor

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"live-gallery/internal/logging"
	"live-gallery/internal/startup"
)

// RunUntilSignal serves the tree until SIGINT or SIGTERM, then cancels it
// and waits for every service to stop. It returns an error only if the tree
// stopped on its own.
func (t *Tree) RunUntilSignal() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errCh := t.ServeBackground(ctx)

	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			err = errors.New("supervisor tree stopped unexpectedly")
		}
		return err
	}

	startup.LogShutdownStep("Stopping supervised services")
	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("supervisor stopped with error: %v", err)
	}

	if report, err := t.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn("  service did not stop in time: %s", svc.Name)
		}
	} else {
		startup.LogShutdownStepComplete("All services stopped")
	}
	startup.LogShutdownComplete()
	return nil
}
