package config

import (
	"path/filepath"
	"testing"
)

func TestCreateZeroConfig_Minimal(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("MCP_URL", "")

	cfg := CreateZeroConfig(ZeroConfig{})

	llm, ok := cfg.GetLLM("default")
	if !ok {
		t.Fatal("zero config should define the default LLM")
	}
	if llm.Provider != LLMProviderAnthropic {
		t.Errorf("Provider = %v, want %v", llm.Provider, LLMProviderAnthropic)
	}

	agent, ok := cfg.GetAgent("assistant")
	if !ok {
		t.Fatal("zero config should define the assistant agent")
	}
	if agent.LLM != "default" {
		t.Errorf("agent LLM = %v, want default", agent.LLM)
	}
	if agent.Streaming == nil || !*agent.Streaming {
		t.Error("zero config should enable streaming")
	}
}

func TestCreateZeroConfig_DocsFolder(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("MCP_URL", "")

	cfg := CreateZeroConfig(ZeroConfig{
		AgentName:  "researcher",
		DocsFolder: "./test-docs",
	})

	store, ok := cfg.DocumentStores["_rag_docs"]
	if !ok {
		t.Fatal("docs folder should create the _rag_docs store")
	}
	if store.Source == nil || store.Source.Type != "directory" {
		t.Fatalf("store source = %+v, want directory source", store.Source)
	}
	if store.Source.Path != "./test-docs" {
		t.Errorf("source path = %v, want ./test-docs", store.Source.Path)
	}
	if store.VectorStore != "_rag_vectors" || store.Embedder != "_rag_embedder" {
		t.Errorf("store wiring = %v/%v, want _rag_vectors/_rag_embedder", store.VectorStore, store.Embedder)
	}

	if _, ok := cfg.VectorStores["_rag_vectors"]; !ok {
		t.Error("docs folder should create the _rag_vectors store")
	}
	if _, ok := cfg.Embedders["_rag_embedder"]; !ok {
		t.Error("docs folder should create the _rag_embedder")
	}

	agent := cfg.Agents["researcher"]
	if agent.DocumentStores == nil || len(*agent.DocumentStores) != 1 || (*agent.DocumentStores)[0] != "_rag_docs" {
		t.Errorf("agent document stores = %v, want [_rag_docs]", agent.DocumentStores)
	}
}

func TestCreateZeroConfig_DocsFolderPathMapping(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("MCP_URL", "")

	cfg := CreateZeroConfig(ZeroConfig{
		DocsFolder:    "./local-docs:/docs",
		MCPParserTool: "convert_document",
	})

	store := cfg.DocumentStores["_rag_docs"]
	if store.Source.Path != "./local-docs" {
		t.Errorf("local path = %v, want ./local-docs", store.Source.Path)
	}
	if store.MCPParsers == nil {
		t.Fatal("MCP parser tool should configure mcp_parsers")
	}
	if store.MCPParsers.PathPrefix != "/docs" {
		t.Errorf("path prefix = %v, want /docs", store.MCPParsers.PathPrefix)
	}
	if len(store.MCPParsers.ToolNames) != 1 || store.MCPParsers.ToolNames[0] != "convert_document" {
		t.Errorf("tool names = %v", store.MCPParsers.ToolNames)
	}
}

func TestCreateZeroConfig_Storage(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("MCP_URL", "")

	dbPath := filepath.Join(t.TempDir(), "loom.db")
	cfg := CreateZeroConfig(ZeroConfig{
		Storage:   "sqlite",
		StorageDB: dbPath,
	})

	db, ok := cfg.GetDatabase("_default")
	if !ok {
		t.Fatal("storage should register the _default database")
	}
	if db.Driver != "sqlite" || db.Database != dbPath {
		t.Errorf("database = %v %v", db.Driver, db.Database)
	}

	if cfg.Server.Tasks == nil || cfg.Server.Tasks.Backend != StorageBackendSQL {
		t.Error("tasks should use the sql backend")
	}
	if cfg.Server.Sessions == nil || cfg.Server.Sessions.Backend != StorageBackendSQL {
		t.Error("sessions should use the sql backend")
	}
	if cfg.Server.Checkpoint == nil || !cfg.Server.Checkpoint.IsEnabled() {
		t.Error("storage should enable checkpointing")
	}
}

func TestCreateZeroConfig_Tools(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("MCP_URL", "")

	cfg := CreateZeroConfig(ZeroConfig{Tools: "read_file,write_file"})

	if _, ok := cfg.Tools["read_file"]; !ok {
		t.Error("read_file should be configured")
	}
	if _, ok := cfg.Tools["write_file"]; !ok {
		t.Error("write_file should be configured")
	}
	if _, ok := cfg.Tools["execute_command"]; ok {
		t.Error("unlisted tools should not be configured")
	}
}

func TestParseToolsList(t *testing.T) {
	available := GetDefaultToolConfigs()

	all := parseToolsList("all", available)
	if len(all) != len(available) {
		t.Errorf("'all' should select every tool: got %d, want %d", len(all), len(available))
	}

	subset := parseToolsList(" read_file , bogus_tool ", available)
	if len(subset) != 1 || subset[0] != "read_file" {
		t.Errorf("subset = %v, want [read_file]", subset)
	}
}

func TestApplyToolApprovalOverrides(t *testing.T) {
	cfg := &Config{Tools: map[string]*ToolConfig{
		"read_file": {Type: ToolTypeFunction, Handler: "read_file"},
	}}
	cfg.SetDefaults()

	if cfg.Tools["read_file"].NeedsApproval() {
		t.Fatal("read_file should not need approval by default")
	}

	ApplyToolApprovalOverrides(cfg, "read_file", "")
	if !cfg.Tools["read_file"].NeedsApproval() {
		t.Error("approve override should force approval on")
	}

	ApplyToolApprovalOverrides(cfg, "", "read_file")
	if cfg.Tools["read_file"].NeedsApproval() {
		t.Error("no-approve override should force approval off")
	}

	// Overriding an unconfigured tool creates it.
	ApplyToolApprovalOverrides(cfg, "execute_command", "")
	if tool, ok := cfg.Tools["execute_command"]; !ok || !tool.NeedsApproval() {
		t.Error("override should create and gate unconfigured tools")
	}
}
