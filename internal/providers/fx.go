package providers

import (
	"github.com/smallbiznis/planix/internal/providers/deepseek"
	"github.com/smallbiznis/planix/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	deepseek.Module,
	pdf.Module,
)
