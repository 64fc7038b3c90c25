package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosnap/gosnap/internal/config"
)

// --- init ---

// agentConfig describes where a coding agent looks for MCP server
// registrations and which top-level key holds them.
type agentConfig struct {
	name       string
	path       func() (string, error)
	serversKey string
}

func homePath(parts ...string) func() (string, error) {
	return func() (string, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append([]string{home}, parts...)...), nil
	}
}

func projectPath(parts ...string) func() (string, error) {
	return func() (string, error) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(append([]string{cwd}, parts...)...), nil
	}
}

func agentConfigs() map[string]agentConfig {
	return map[string]agentConfig{
		"claude": {
			name:       "Claude Code",
			path:       homePath(".claude", "mcp.json"),
			serversKey: "mcpServers",
		},
		"cursor": {
			name:       "Cursor",
			path:       projectPath(".cursor", "mcp.json"),
			serversKey: "mcpServers",
		},
		"vscode": {
			name:       "VS Code",
			path:       projectPath(".vscode", "mcp.json"),
			serversKey: "servers",
		},
		"windsurf": {
			name:       "Windsurf",
			path:       homePath(".codeium", "windsurf", "mcp_config.json"),
			serversKey: "mcpServers",
		},
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Register gosnap as an MCP server with a coding agent",
	Long: `Register gosnap as an MCP server with a coding agent.

Examples:
  gosnap init                   # register with Claude Code
  gosnap init --agent cursor    # register with Cursor (project-local)
  gosnap init --agent vscode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")

		ac, ok := agentConfigs()[agent]
		if !ok {
			return fmt.Errorf("unknown agent %q: valid agents are claude, cursor, vscode, windsurf", agent)
		}

		path, err := ac.path()
		if err != nil {
			return fmt.Errorf("resolving config path for %s: %w", ac.name, err)
		}

		if err := registerMCPServer(path, ac.serversKey); err != nil {
			return err
		}

		printSuccess("Registered gosnap with %s (%s)", ac.name, path)
		printStep("Restart %s to pick up the new MCP server", ac.name)
		return nil
	},
}

// registerMCPServer merges a gosnap entry into the agent's MCP config
// file, preserving any servers already registered there.
func registerMCPServer(path, serversKey string) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("existing config %s is not valid JSON: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	servers, _ := doc[serversKey].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers["gosnap"] = map[string]any{
		"command": "gosnap",
		"args":    []string{"serve"},
	}
	doc[serversKey] = servers

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func init() {
	initCmd.Flags().String("agent", "claude", "agent to register with (claude, cursor, vscode, windsurf)")
}

// --- doctor ---

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local gosnap setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		failures := 0

		printStep("Checking configuration...")
		cfg, err := config.Load()
		if err != nil {
			printError("config: %v", err)
			return fmt.Errorf("configuration is invalid")
		}
		printSuccess("config loaded (backend %s, port %d)", cfg.Storage.Backend, cfg.Server.Port)

		printStep("Checking data directory...")
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			printError("data dir %s is not writable: %v", cfg.Storage.DataDir, err)
			failures++
		} else {
			probe := filepath.Join(cfg.Storage.DataDir, ".doctor")
			if err := os.WriteFile(probe, nil, 0o644); err != nil {
				printError("data dir %s is not writable: %v", cfg.Storage.DataDir, err)
				failures++
			} else {
				os.Remove(probe)
				printSuccess("data dir %s is writable", cfg.Storage.DataDir)
			}
		}

		printStep("Checking port %d...", cfg.Server.Port)
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		if conn, err := net.DialTimeout("tcp", addr, 2*time.Second); err == nil {
			conn.Close()
			if pid, pidErr := readPIDFile(pidFilePath(cfg.Storage.DataDir)); pidErr == nil {
				printSuccess("gosnap is running on port %d (PID %d)", cfg.Server.Port, pid)
			} else {
				printWarning("port %d is in use by another process", cfg.Server.Port)
			}
		} else {
			printSuccess("port %d is free", cfg.Server.Port)
		}

		printStep("Checking agent registrations...")
		registered := 0
		for _, ac := range agentConfigs() {
			path, err := ac.path()
			if err != nil {
				continue
			}
			if hasMCPServer(path, ac.serversKey) {
				printStatus(ac.name, "registered (%s)", path)
				registered++
			}
		}
		if registered == 0 {
			printWarning("no agent registrations found, run `gosnap init` to add one")
		}

		if failures > 0 {
			return fmt.Errorf("%d check(s) failed", failures)
		}
		printSuccess("All checks passed")
		return nil
	},
}

func hasMCPServer(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	servers, _ := doc[serversKey].(map[string]any)
	_, ok := servers["gosnap"]
	return ok
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
