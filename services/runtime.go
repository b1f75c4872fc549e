package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xSaurabhSharma/code-correction-agent/core/guard"
	"github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/metrics"
	"github.com/0xSaurabhSharma/code-correction-agent/core/oracle"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sandbox"
	"github.com/0xSaurabhSharma/code-correction-agent/core/sse"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/0xSaurabhSharma/code-correction-agent/core/workflow"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/config"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/llm"
	"github.com/0xSaurabhSharma/code-correction-agent/webui"
	"github.com/mudler/xlog"
	"github.com/philippgille/chromem-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Runtime holds every component built from a Config.
type Runtime struct {
	Config   *config.Config
	Sandbox  *sandbox.Sandbox
	Oracle   *oracle.LLM
	Guard    *guard.Guard
	Memory   memory.Store
	History  *history.JSONStore
	Events   *sse.Manager
	Registry *prometheus.Registry
	Workflow *workflow.Workflow
}

// New wires the components. A memory store that cannot be opened is
// logged and left out: runs still work, without curation.
func New(ctx context.Context, cfg *config.Config, observers ...types.Observer) (*Runtime, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	r := &Runtime{
		Config: cfg,
		Sandbox: sandbox.New(
			sandbox.WithCallTimeout(cfg.Workflow.CallTimeout),
		),
		Events:   sse.NewManager(5, 50),
		Registry: prometheus.NewRegistry(),
	}
	r.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, p := cfg.LLMProvider()
	client, err := llm.NewProviderClient(ctx, provider, p.APIKey, p.APIURL, cfg.Timeout.String())
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", provider, err)
	}
	r.Oracle = oracle.New(client, p.ModelName, oracle.WithAllowedPackages(sandbox.DefaultAllowedPackages...))
	xlog.Info("Oracle ready", "provider", provider, "model", p.ModelName)

	var safeguard llm.LLMClient
	if cfg.Safeguard.Enabled {
		name, sp := cfg.SafeguardProvider()
		safeguard, err = llm.NewProviderClient(ctx, name, sp.APIKey, sp.APIURL, cfg.Timeout.String())
		if err != nil {
			return nil, fmt.Errorf("creating safeguard client: %w", err)
		}
		xlog.Info("Safeguard ready", "provider", name, "model", sp.ModelName)
	}
	_, sp := cfg.SafeguardProvider()
	r.Guard = guard.New(r.Sandbox, safeguard, sp.ModelName)

	if store, err := r.openMemory(ctx); err != nil {
		xlog.Error("Failed to open memory store, continuing without it", "error", err)
	} else {
		r.Memory = store
	}

	r.History, err = history.NewJSONStore(cfg.Server.HistoryFile, 0)
	if err != nil {
		return nil, err
	}

	observers = append(observers, r.Events, metrics.NewRecorder(r.Registry))
	r.Workflow = workflow.New(r.Oracle, r.Memory,
		workflow.WithSandbox(r.Sandbox),
		workflow.WithMaxCycles(cfg.Workflow.MaxCycles),
		workflow.WithSearchLimit(cfg.Memory.SearchLimit),
		workflow.WithDistanceThreshold(cfg.Memory.DistanceThreshold),
		workflow.WithPatchMode(workflow.PatchMode(cfg.Workflow.PatchMode)),
		workflow.WithSmokeTestResetsFailure(cfg.Workflow.SmokeTestResetsFailure),
		workflow.WithObserver(observers...),
	)

	return r, nil
}

func (r *Runtime) openMemory(ctx context.Context) (*memory.ChromemStore, error) {
	embed, err := r.embeddingFunc(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(r.Config.Memory.Path), 0755); err != nil {
		return nil, err
	}
	return memory.NewChromemStore(r.Config.Memory.Collection, r.Config.Memory.Path, embed)
}

func (r *Runtime) embeddingFunc(ctx context.Context) (chromem.EmbeddingFunc, error) {
	provider, p := r.Config.EmbeddingProvider()
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = r.Config.LLM.Providers[provider].APIKey
	}

	switch provider {
	case llm.ProviderOpenAI:
		return memory.OpenAIEmbeddingFunc(llm.NewClient(apiKey, p.APIURL, r.Config.Timeout.String()), p.ModelName), nil
	case llm.ProviderGoogle:
		client, err := llm.NewGenAIClient(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		return memory.GenAIEmbeddingFunc(client, p.ModelName), nil
	case "local":
		return memory.HashEmbeddingFunc(256), nil
	}
	return nil, fmt.Errorf("unknown embedding provider: %s", provider)
}

// App builds the HTTP front end over the runtime.
func (r *Runtime) App(opts ...webui.Option) *webui.App {
	return webui.NewApp(append([]webui.Option{
		webui.WithWorkflow(r.Workflow),
		webui.WithGuard(r.Guard),
		webui.WithSandbox(r.Sandbox),
		webui.WithHistory(r.History),
		webui.WithMemory(r.Memory),
		webui.WithEvents(r.Events),
		webui.WithMetrics(r.Registry),
		webui.WithApiKeys(r.Config.Server.APIKeys...),
		webui.WithRunTimeout(r.Config.Timeout),
	}, opts...)...)
}
