package floorplan

import (
	"github.com/smallbiznis/planix/internal/floorplan/repository"
	"github.com/smallbiznis/planix/internal/floorplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("floorplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
