package plugins

import (
	"context"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
	"github.com/joshp123/gohome-purifier/plugins/purifier"
)

func init() {
	Register(func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.Plugin, bool) {
		return purifier.NewPlugin(ctx, cfg, logger)
	})
}
