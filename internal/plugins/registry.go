package plugins

import (
	"context"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
)

// Factory builds a plugin instance from the loaded config.
type Factory func(context.Context, *config.Config, *zap.Logger) (core.Plugin, bool)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(ctx context.Context, cfg *config.Config, logger *zap.Logger) []core.Plugin {
	if cfg == nil {
		return nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok := factory(ctx, cfg, logger)
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out
}
