// ABOUTME: flowxd entrypoint: loads config, wires the handler registry,
// ABOUTME: run store, and HTTP surface together, and serves.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/httpapi"
	"github.com/flowxcore/engine/llm"
	"github.com/flowxcore/engine/nodes"
	"github.com/flowxcore/engine/registry"
	"github.com/flowxcore/engine/store"
)

func main() {
	loadDotEnvAuto()

	if err := run(); err != nil {
		log.Fatalf("flowxd: %v", err)
	}
}

func run() error {
	if cfg, err := loadFileConfig(configFilePath()); err != nil {
		log.Printf("config file: %v", err)
	} else {
		applyFileConfig(cfg)
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pluginsDir := os.Getenv("FLOWX_PLUGINS_DIR")
	if pluginsDir == "" {
		if dir, err := defaultPluginsDir(); err == nil {
			pluginsDir = dir
		}
	}
	reg, warnings := registry.Build(pluginsDir)
	for _, warn := range warnings {
		log.Printf("plugin manifest warning: %s: %s", warn.Path, warn.Message)
	}
	wireReactAgent(reg)

	runStore, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer runStore.Close()

	workflows := store.NewInMemoryWorkflowRepository()
	restartCfg := engine.DefaultRestartConfig()

	srv := httpapi.NewServer(reg, runStore, workflows, restartCfg, warnings)

	addr := os.Getenv("FLOWX_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{Addr: addr, Handler: srv.Router}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("flowxd listening on %s (data dir %s)", addr, dataDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

func resolveDataDir() (string, error) {
	if v := os.Getenv("FLOWX_DATA_DIR"); v != "" {
		return v, nil
	}
	return defaultDataDir()
}

func configFilePath() string {
	if v := os.Getenv("FLOWX_CONFIG_FILE"); v != "" {
		return v
	}
	dir, err := defaultConfigDir()
	if err != nil {
		return ""
	}
	return dir + string(os.PathSeparator) + "config.yaml"
}

// wireReactAgent injects an llm.Client into the compiled-in react_agent
// handler once an API key is available; without one the node type stays
// registered but fails validation-time-adjacent execution with a clear
// infrastructure error rather than silently no-op'ing.
func wireReactAgent(reg *engine.HandlerRegistry) {
	handler, ok := reg.Get("react_agent")
	if !ok {
		return
	}
	agent, ok := handler.(*nodes.ReactAgentHandler)
	if !ok {
		return
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return
	}
	primary := os.Getenv("FLOWX_PRIMARY_MODEL")
	if primary == "" {
		primary = "claude-sonnet-4-5"
	}
	fallback := os.Getenv("FLOWX_FALLBACK_MODEL")

	agent.Client = llm.NewAnthropicClient(apiKey, primary, fallback)
	agent.Tools = defaultToolExecutor
}

// defaultToolExecutor is the extension point a deployment wires concrete
// tool implementations into; absent that, it reports a tool as
// unimplemented rather than fabricating a result.
func defaultToolExecutor(ctx context.Context, rc *engine.RuntimeContext, toolID string, input map[string]any) (string, error) {
	return "", fmt.Errorf("tool %q has no registered implementation", toolID)
}
