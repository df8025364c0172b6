package pdf

import (
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	"go.uber.org/fx"
)

type Provider interface {
	floorplandomain.Renderer
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

var Module = fx.Module("pdf",
	fx.Provide(New),
	fx.Provide(func(p Provider) floorplandomain.Renderer { return p }),
)
