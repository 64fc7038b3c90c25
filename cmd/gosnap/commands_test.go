package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestColorize(t *testing.T) {
	noColor = false
	if got := colorize(colorGreen, "ok"); got != colorGreen+"ok"+colorReset {
		t.Errorf("colorize = %q", got)
	}

	noColor = true
	defer func() { noColor = false }()
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with noColor = %q", got)
	}
}

func TestRegisterMCPServerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claude", "mcp.json")

	if err := registerMCPServer(path, "mcpServers"); err != nil {
		t.Fatalf("registering: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	var doc map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}

	entry := doc["mcpServers"]["gosnap"]
	if entry == nil {
		t.Fatal("gosnap entry missing")
	}
	if entry["command"] != "gosnap" {
		t.Errorf("command = %v", entry["command"])
	}
	args, _ := entry["args"].([]any)
	if len(args) != 1 || args[0] != "serve" {
		t.Errorf("args = %v", entry["args"])
	}

	if !hasMCPServer(path, "mcpServers") {
		t.Error("hasMCPServer does not see the new entry")
	}
}

func TestRegisterMCPServerPreservesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	existing := `{
  "mcpServers": {
    "other-tool": {"command": "other-tool", "args": ["--stdio"]}
  },
  "unrelated": true
}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := registerMCPServer(path, "mcpServers"); err != nil {
		t.Fatalf("registering: %v", err)
	}

	data, _ := os.ReadFile(path)
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}

	servers, _ := doc["mcpServers"].(map[string]any)
	if _, ok := servers["other-tool"]; !ok {
		t.Error("existing registration dropped")
	}
	if _, ok := servers["gosnap"]; !ok {
		t.Error("gosnap entry missing")
	}
	if doc["unrelated"] != true {
		t.Error("unrelated top-level key dropped")
	}
}

func TestRegisterMCPServerRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := registerMCPServer(path, "mcpServers"); err == nil {
		t.Error("expected error for corrupt existing config")
	}
}

func TestHasMCPServerMissingFile(t *testing.T) {
	if hasMCPServer(filepath.Join(t.TempDir(), "absent.json"), "mcpServers") {
		t.Error("hasMCPServer reported entry in missing file")
	}
}

func TestAgentConfigsComplete(t *testing.T) {
	configs := agentConfigs()
	for _, agent := range []string{"claude", "cursor", "vscode", "windsurf"} {
		ac, ok := configs[agent]
		if !ok {
			t.Errorf("agent %s missing", agent)
			continue
		}
		if ac.serversKey == "" || ac.name == "" {
			t.Errorf("agent %s incomplete: %+v", agent, ac)
		}
		if _, err := ac.path(); err != nil {
			t.Errorf("agent %s path: %v", agent, err)
		}
	}
	if agentConfigs()["vscode"].serversKey != "servers" {
		t.Error("vscode must use the servers key")
	}
}
