package capability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cogcore/internal/logging"
	"cogcore/internal/mcp"
)

// DiscoveryWatcher watches configured directories for new or changed
// *.json server-config files and integrates them into a Registry
// (§4.7.2's auto-discovery loop).
type DiscoveryWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	registry *Registry
	manager  *Manager
	dirs     []string

	debounceMap map[string]time.Time
	debounceDur time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewDiscoveryWatcher constructs a watcher over dirs. Missing directories
// are tolerated: Start logs and skips any directory it cannot watch, and
// that directory is not retried later.
func NewDiscoveryWatcher(registry *Registry, manager *Manager, dirs []string) (*DiscoveryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DiscoveryWatcher{
		watcher:     w,
		registry:    registry,
		manager:     manager,
		dirs:        dirs,
		debounceMap: make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching in the background. Non-blocking.
func (w *DiscoveryWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			logging.CapabilityDebug("discovery: cannot watch %s yet: %v", dir, err)
			continue
		}
		logging.CapabilityDebug("discovery: watching %s", dir)
	}

	go w.run(ctx)
}

// Stop terminates the watcher and releases the underlying fsnotify handle.
func (w *DiscoveryWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *DiscoveryWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *DiscoveryWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *DiscoveryWatcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.integrate(ctx, path)
	}
}

func (w *DiscoveryWatcher) integrate(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var cfg mcp.MCPServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.CapabilityDebug("discovery: malformed config %s: %v", path, err)
		return
	}
	if cfg.ID == "" {
		cfg.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	if _, exists := w.registry.Get(cfg.ID); !exists {
		w.registry.Add(cfg.ID, cfg)
		logging.Capability("discovery: integrated new server config %s from %s", cfg.ID, path)
	}

	if !cfg.AutoDiscoverTools {
		return
	}
	w.discoverAndSurface(ctx, cfg)
}

// discoverAndSurface connects a short-lived probe transport to list tools,
// records them on the registry entry, forwards them to the manager's
// discovered-tools callback, and disconnects the probe before returning.
func (w *DiscoveryWatcher) discoverAndSurface(ctx context.Context, cfg mcp.MCPServerConfig) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	var transport mcp.MCPTransport
	switch mcp.Protocol(cfg.Protocol) {
	case mcp.ProtocolHTTP:
		transport = mcp.NewHTTPTransport(cfg.BaseURL, timeout)
	case mcp.ProtocolStdio:
		transport = mcp.NewStdioTransport(cfg.Endpoint)
	case mcp.ProtocolSSE:
		transport = mcp.NewSSETransport(cfg.BaseURL, timeout)
	default:
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := transport.Connect(probeCtx); err != nil {
		logging.CapabilityDebug("discovery: probe connect failed for %s: %v", cfg.ID, err)
		return
	}
	defer transport.Disconnect()

	schemas, err := transport.ListTools(probeCtx)
	if err != nil {
		return
	}
	w.registry.SetTools(cfg.ID, schemas)

	w.manager.mu.Lock()
	cb := w.manager.onDiscoveredTools
	w.manager.mu.Unlock()
	if cb == nil {
		return
	}
	tools := make([]DiscoveredTool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, DiscoveredTool{Name: s.Name, Description: s.Description, InputSchema: s.InputSchema})
	}
	cb(tools)
}
