package generation

import (
	"context"

	"github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation.service",
	fx.Provide(service.New),
	fx.Invoke(registerShutdown),
)

// registerShutdown lets in-flight generations reach a terminal state before
// the process exits.
func registerShutdown(lc fx.Lifecycle, svc domain.Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				svc.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
