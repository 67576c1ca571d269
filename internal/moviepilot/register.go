package moviepilot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nugget/servicebridge/internal/config"
	"github.com/nugget/servicebridge/internal/tools"
)

// serviceName is the services entry this integration reads.
const serviceName = "moviepilot"

// Register is the REST integration entry point. It resolves the
// moviepilot service from the host config and registers the fixed
// operation set. Absent or malformed config is logged and registers
// nothing; only a host without a registrar is an error.
func Register(_ context.Context, host tools.Host) error {
	if host.Tools == nil {
		return errors.New("moviepilot: host has no tool registrar")
	}
	logger := host.Log().With("integration", config.RESTPluginID)

	svc, err := config.ResolvePluginConfig(host.Config, config.RESTPluginID).Service(serviceName)
	if err != nil {
		logger.Error("invalid MoviePilot REST config; skipping tool registration", "error", err)
		return nil
	}
	if svc == nil || svc.BaseURL == "" {
		logger.Info("MoviePilot REST not configured; skipping tool registration")
		return nil
	}

	if unknown := UnknownOperations(svc.Endpoints); len(unknown) > 0 {
		logger.Warn("ignoring endpoint overrides for unknown operations", "keys", unknown)
	}

	endpoints, err := ResolveEndpoints(svc.Endpoints)
	if err != nil {
		logger.Error("invalid MoviePilot REST endpoint override", "error", err)
		return nil
	}

	client, err := NewClient(svc, logger)
	if err != nil {
		logger.Error("invalid MoviePilot REST baseUrl", "error", err)
		return nil
	}

	n := RegisterTools(client, endpoints, host.Tools, logger)
	if svc.Debug {
		logger.Info("registered MoviePilot REST tools", "count", n)
	}
	return nil
}

// RegisterTools registers one tool per operation against reg and returns
// how many registrations succeeded.
func RegisterTools(client *Client, endpoints map[string]Endpoint, reg tools.Registrar, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}

	n := 0
	for _, op := range operations {
		ep, ok := endpoints[op.key]
		if !ok {
			ep = DefaultEndpoints[op.key]
		}
		if err := reg.RegisterTool(op.tool(client, ep), tools.Optional(op.optional)); err != nil {
			logger.Error("failed to register MoviePilot tool", "tool", op.name, "error", err)
			continue
		}
		logger.Debug("registered MoviePilot tool",
			"tool", op.name,
			"method", ep.Method,
			"path", ep.Path,
			"optional", op.optional,
		)
		n++
	}
	return n
}
