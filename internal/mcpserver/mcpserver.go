// Package mcpserver implements the default control surface: an MCP server
// over stdio exposing one tool per verb in spec.md §6. Grounded in
// rohanprabhu-thought-process's minimal mcp.NewServer/mcp.AddTool/
// server.Run(ctx, &mcp.StdioTransport{}) shape, extended from its single
// echo tool to the full verb set, dispatching into the Configuration Store
// and Process Manager the way the teacher's router.go dispatches HTTP
// routes into its Manager.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/runtime"
)

// Server owns the MCP server instance and its collaborators.
type Server struct {
	configs *configstore.Store
	mgr     *runtime.Manager
	mcp     *mcp.Server
}

// New builds a Server with every control-surface tool registered.
func New(name, version string, configs *configstore.Store, mgr *runtime.Manager) *Server {
	s := &Server{
		configs: configs,
		mgr:     mgr,
		mcp:     mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP requests over stdio until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, v, nil
}

func errResult(err error) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}, nil, nil
}

type listConfigurationsArgs struct{}

type getConfigurationArgs struct {
	ConfigID string `json:"config_id" jsonschema:"the configuration id"`
}

type updateConfigurationArgs struct {
	ConfigID      string                 `json:"config_id" jsonschema:"the configuration id"`
	Configuration appmodel.Configuration `json:"configuration" jsonschema:"the full replacement configuration document"`
}

type deleteConfigurationArgs struct {
	ConfigID string `json:"config_id" jsonschema:"the configuration id"`
	Force    bool   `json:"force,omitempty" jsonschema:"stop running applications first instead of rejecting the delete"`
}

type groupOpArgs struct {
	ConfigID string   `json:"config_id" jsonschema:"the configuration id"`
	AppIDs   []string `json:"app_ids,omitempty" jsonschema:"application ids to target; empty means every application"`
}

type stopConfigurationArgs struct {
	ConfigID string   `json:"config_id" jsonschema:"the configuration id"`
	AppIDs   []string `json:"app_ids,omitempty" jsonschema:"application ids to target; empty means every application"`
	Graceful bool     `json:"graceful" jsonschema:"SIGTERM-then-SIGKILL escalation instead of immediate SIGKILL"`
}

type getLogsArgs struct {
	ConfigID string `json:"config_id" jsonschema:"the configuration id"`
	AppID    string `json:"app_id" jsonschema:"the application id"`
	N        int    `json:"n,omitempty" jsonschema:"number of trailing entries to return; 0 means all"`
	RunID    string `json:"run_id,omitempty" jsonschema:"archived run id, or empty for the current run"`
}

type searchLogsArgs struct {
	ConfigID      string `json:"config_id" jsonschema:"the configuration id"`
	AppID         string `json:"app_id" jsonschema:"the application id"`
	Pattern       string `json:"pattern" jsonschema:"regular expression, or literal substring if invalid"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"cap on returned matches; 0 means unbounded"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type listLogRunsArgs struct {
	ConfigID string `json:"config_id" jsonschema:"the configuration id"`
	AppID    string `json:"app_id" jsonschema:"the application id"`
}

type runCommandArgs struct {
	ConfigID string   `json:"config_id" jsonschema:"the configuration id"`
	AppID    string   `json:"app_id" jsonschema:"the application id"`
	Command  string   `json:"command" jsonschema:"a handler-recognised subcommand name or an arbitrary command"`
	Args     []string `json:"args,omitempty"`
}

type triggerReloadArgs struct {
	ConfigID string `json:"config_id" jsonschema:"the configuration id"`
	AppID    string `json:"app_id" jsonschema:"the application id"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_configurations", Description: "List every stored configuration"},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ listConfigurationsArgs) (*mcp.CallToolResult, any, error) {
			cfgs, err := s.configs.List()
			if err != nil {
				return errResult(err)
			}
			return jsonResult(cfgs)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "create_configuration", Description: "Create a new configuration document"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args appmodel.Configuration) (*mcp.CallToolResult, any, error) {
			id, err := s.configs.Create(args)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(map[string]string{"config_id": id})
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_configuration", Description: "Fetch one configuration document"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args getConfigurationArgs) (*mcp.CallToolResult, any, error) {
			cfg, err := s.configs.Get(args.ConfigID)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(cfg)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "update_configuration", Description: "Replace a configuration document; rejected while any of its applications are running"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args updateConfigurationArgs) (*mcp.CallToolResult, any, error) {
			cur, err := s.configs.Get(args.ConfigID)
			if err != nil {
				return errResult(err)
			}
			allStopped := s.mgr.AllStopped(args.ConfigID, &cur)
			cfg, err := s.configs.Update(args.ConfigID, allStopped, func(c *appmodel.Configuration) error {
				c.Name = args.Configuration.Name
				c.Description = args.Configuration.Description
				c.Applications = args.Configuration.Applications
				return nil
			})
			if err != nil {
				return errResult(err)
			}
			return jsonResult(cfg)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "delete_configuration", Description: "Delete a configuration document; rejected while any of its applications are running unless force is set"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args deleteConfigurationArgs) (*mcp.CallToolResult, any, error) {
			if err := s.mgr.DeleteConfiguration(ctx, args.ConfigID, args.Force); err != nil {
				return errResult(err)
			}
			return jsonResult(map[string]string{"config_id": args.ConfigID, "status": "deleted"})
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "start_configuration", Description: "Start some or all applications of a configuration, in dependency order"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args groupOpArgs) (*mcp.CallToolResult, any, error) {
			st, err := s.mgr.StartGroup(ctx, args.ConfigID, args.AppIDs)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(st)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "stop_configuration", Description: "Stop some or all applications of a configuration, in reverse dependency order"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args stopConfigurationArgs) (*mcp.CallToolResult, any, error) {
			st, err := s.mgr.StopGroup(ctx, args.ConfigID, args.AppIDs, args.Graceful)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(st)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "restart_configuration", Description: "Stop then start some or all applications of a configuration"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args groupOpArgs) (*mcp.CallToolResult, any, error) {
			st, err := s.mgr.RestartGroup(ctx, args.ConfigID, args.AppIDs)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(st)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_status", Description: "Report the current state of some or all applications of a configuration"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args groupOpArgs) (*mcp.CallToolResult, any, error) {
			st, err := s.mgr.Status(ctx, args.ConfigID, args.AppIDs)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(st)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_logs", Description: "Tail an application's log, current run or a named archive"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args getLogsArgs) (*mcp.CallToolResult, any, error) {
			entries, err := s.mgr.GetLogs(args.ConfigID, args.AppID, args.N, args.RunID)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(entries)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search_logs", Description: "Regex-search an application's current log plus its retained archives"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args searchLogsArgs) (*mcp.CallToolResult, any, error) {
			matches, err := s.mgr.SearchLogs(args.ConfigID, args.AppID, args.Pattern, args.MaxResults, args.CaseSensitive)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(matches)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_log_runs", Description: "List an application's archived log runs, newest first"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args listLogRunsArgs) (*mcp.CallToolResult, any, error) {
			runs, err := s.mgr.ListLogRuns(args.ConfigID, args.AppID)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(runs)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "run_command", Description: "Run a handler-recognised or arbitrary command in an application's working directory"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args runCommandArgs) (*mcp.CallToolResult, any, error) {
			res, err := s.mgr.RunCommand(ctx, args.ConfigID, args.AppID, args.Command, args.Args)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(res)
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "trigger_reload", Description: "Ask an application's handler to live-reload it"},
		func(ctx context.Context, _ *mcp.CallToolRequest, args triggerReloadArgs) (*mcp.CallToolResult, any, error) {
			ok, reason, err := s.mgr.TriggerReload(args.ConfigID, args.AppID)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(map[string]any{"reloaded": ok, "reason": reason})
		})
}
