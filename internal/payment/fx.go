package payment

import (
	"github.com/smallbiznis/planix/internal/payment/adapters"
	"github.com/smallbiznis/planix/internal/payment/repository"
	"github.com/smallbiznis/planix/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(adapters.Provide),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
