// Servicebridge republishes the operations of a MoviePilot media server
// as MCP tools.
//
// Two integrations feed one tool registry: the MCP integration discovers
// tools from MoviePilot's own MCP endpoint, the REST integration
// publishes a fixed set of REST operations. The registry is then served
// to MCP clients over stdio or streamable HTTP. Configuration is loaded
// from a single YAML or TOML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	servicebridge serve               Serve the registered tools over MCP
//	servicebridge tools               List the registered tools
//	servicebridge call <tool> [json]  Call one tool and print its result
//	servicebridge init [dir]          Write an example config file
//	servicebridge version             Print version and build information
//	servicebridge -o json tools       Output as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nugget/servicebridge/internal/buildinfo"
	"github.com/nugget/servicebridge/internal/config"
	"github.com/nugget/servicebridge/internal/mcp"
	"github.com/nugget/servicebridge/internal/mcpserve"
	"github.com/nugget/servicebridge/internal/moviepilot"
	"github.com/nugget/servicebridge/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// and delegates immediately to [run] so the whole lifecycle can be
// driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. stdin and stdout carry the MCP stream in
// stdio mode and command output otherwise; logs always go to stderr.
// Arguments are parsed by hand so run can be called concurrently from
// tests.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdin, stdout, stderr, configPath)
	case "tools":
		return runTools(ctx, stdout, stderr, configPath, outputFmt)
	case "call":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: servicebridge call <tool> [json-arguments]")
		}
		argsJSON := ""
		if len(cmdArgs) > 1 {
			argsJSON = strings.Join(cmdArgs[1:], " ")
		}
		return runCall(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0], argsJSON)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// integration is one tool publisher and the plugin id it reads.
type integration struct {
	id       string
	register func(context.Context, tools.Host) error
}

var integrations = []integration{
	{id: config.MCPPluginID, register: mcp.Register},
	{id: config.RESTPluginID, register: moviepilot.Register},
}

// buildRegistry loads the config and runs every integration against a
// fresh registry. Integration problems are logged by the integrations
// themselves; only host-level failures are returned.
func buildRegistry(ctx context.Context, stderr io.Writer, configPath string) (*tools.Registry, *config.Config, *slog.Logger, error) {
	logger := config.NewLogger(stderr, slog.LevelInfo, "text")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	// LogLevel was validated by Load.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger = config.NewLogger(stderr, level, cfg.LogFormat)
	logger.Debug("config loaded", "path", cfgPath, "skip_optional", cfg.Tools.SkipOptional)

	reg := tools.NewRegistry(logger)
	reg.SetSkipOptional(cfg.Tools.SkipOptional)

	host := tools.Host{Config: cfg.Raw, Tools: reg, Logger: logger}
	for _, in := range integrations {
		if err := in.register(ctx, host); err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", in.id, err)
		}
	}
	logger.Info("tools registered", "count", reg.Len())
	return reg, cfg, logger, nil
}

// runServe registers the integrations and serves the registry until a
// shutdown signal arrives or, in stdio mode, stdin closes.
func runServe(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, cfg, logger, err := buildRegistry(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	logger.Info("starting servicebridge", "version", buildinfo.Version, "commit", buildinfo.GitCommit)

	srv := mcpserve.NewServer(reg, "servicebridge", buildinfo.Version, logger)

	if cfg.ServesStdio() {
		logger.Info("serving MCP over stdio")
		if err := mcpserve.ServeStdio(ctx, srv, stdin, stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server failed: %w", err)
		}
		logger.Info("servicebridge stopped")
		return nil
	}

	httpSrv := mcpserve.NewHTTPServer(cfg.Listen.Address, cfg.Listen.Port, srv, reg.Len(), logger)
	if err := httpSrv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("servicebridge stopped")
	return nil
}

// toolInfo is the listing shape for the tools command.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
}

func runTools(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	reg, _, _, err := buildRegistry(ctx, stderr, configPath)
	if err != nil {
		return err
	}

	infos := make([]toolInfo, 0, reg.Len())
	for _, name := range reg.Names() {
		infos = append(infos, toolInfo{
			Name:        name,
			Description: reg.Get(name).Description,
			Optional:    reg.IsOptional(name),
		})
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(stdout, "No tools registered. Is a MoviePilot baseUrl configured?")
		return nil
	}
	for _, ti := range infos {
		flag := ""
		if ti.Optional {
			flag = " (optional)"
		}
		fmt.Fprintf(stdout, "%s%s\n    %s\n", ti.Name, flag, ti.Description)
	}
	return nil
}

func runCall(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, name, argsJSON string) error {
	reg, _, _, err := buildRegistry(ctx, stderr, configPath)
	if err != nil {
		return err
	}

	res, err := reg.ExecuteJSON(ctx, name, argsJSON)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(stdout, res.Text())
	if res.IsError {
		return fmt.Errorf("tool %s reported an error", name)
	}
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Servicebridge - MoviePilot tools over MCP")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: servicebridge [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                Serve registered tools (stdio, or HTTP when listen.port is set)")
	fmt.Fprintln(w, "  tools                List registered tools")
	fmt.Fprintln(w, "  call <tool> [json]   Call a tool with JSON arguments")
	fmt.Fprintln(w, "  init [dir]           Write an example servicebridge.yaml (default: .)")
	fmt.Fprintln(w, "  version              Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  "+strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// loadConfig locates and parses the configuration file. If explicit is
// non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
