package supervisor

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// After returns a service that runs svc once wait succeeds. It is used to
// hold the folder watcher back until an ingest target is known.
func After(wait func(context.Context) error, svc suture.Service) suture.Service {
	return &afterService{wait: wait, svc: svc}
}

type afterService struct {
	wait func(context.Context) error
	svc  suture.Service
}

func (a *afterService) Serve(ctx context.Context) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.svc.Serve(ctx)
}

func (a *afterService) String() string {
	if s, ok := a.svc.(interface{ String() string }); ok {
		return s.String()
	}
	return "deferred-service"
}
