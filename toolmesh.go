// Package toolmesh wires the memory, weather, web-search and email adapters
// into a tool registry that agents and the HTTP tool server share.
//
// Typical use:
//
//	cfg, _ := config.Load()
//	mesh, err := toolmesh.New(cfg)
//	a := mesh.NewAgent(openai.NewModel())
//	res, err := a.Run(ctx, cfg.UserID, "What's the weather in Paris?")
package toolmesh

import (
	"context"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/toolmesh/agent"
	"github.com/hupe1980/toolmesh/config"
	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/email"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/memory"
	"github.com/hupe1980/toolmesh/model"
	"github.com/hupe1980/toolmesh/search"
	"github.com/hupe1980/toolmesh/server"
	"github.com/hupe1980/toolmesh/tool"
	"github.com/hupe1980/toolmesh/weather"
)

// Options override the components New builds from the config.
type Options struct {
	// MemoryStore replaces the mem0 client, e.g. with memory.NewInMemoryStore().
	MemoryStore core.MemoryStore

	// Searcher replaces the DuckDuckGo searcher.
	Searcher search.Searcher

	// Logger replaces the logger built from TOOLMESH_LOG_LEVEL / TOOLMESH_LOG_FORMAT.
	Logger logging.Logger
}

// ToolMesh holds the configured adapters and their tool registry.
type ToolMesh struct {
	cfg      config.Config
	logger   logging.Logger
	memory   *memory.Adapter
	weather  *weather.Client
	searcher search.Searcher
	email    *email.Sender
	registry *tool.Registry
}

// New builds every adapter from cfg and registers get_weather, web_search,
// send_email, add_memory and search_memory.
//
// Without MEM0_API_KEY (and no Options.MemoryStore) the memory adapter has no
// store: adds are dropped and searches return an empty list.
func New(cfg config.Config, optFns ...func(o *Options)) (*ToolMesh, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg)
	}

	store := opts.MemoryStore
	if store == nil {
		if s, err := memory.NewMem0Store(cfg.Mem0APIKey, func(o *memory.Mem0Options) {
			o.BaseURL = cfg.Mem0BaseURL
			o.Timeout = cfg.HTTPTimeout
			o.Logger = component(logger, "memory")
		}); err == nil {
			store = s
		} else {
			logger.Warn("memory.client.unavailable", "error", err.Error())
		}
	}

	searcher := opts.Searcher
	if searcher == nil {
		searcher = search.NewDuckDuckGo(func(o *search.DuckDuckGoOptions) {
			o.BaseURL = cfg.DuckDuckGoBaseURL
			o.HTMLURL = cfg.DuckDuckGoHTMLURL
			o.Timeout = cfg.HTTPTimeout
			o.Logger = component(logger, "search")
		})
	}

	m := &ToolMesh{
		cfg:    cfg,
		logger: logger,
		memory: memory.NewAdapter(store, func(o *memory.AdapterOptions) {
			o.Logger = component(logger, "memory")
		}),
		weather: weather.NewClient(func(o *weather.Options) {
			o.BaseURL = cfg.WeatherBaseURL
			o.Timeout = cfg.HTTPTimeout
			o.Logger = component(logger, "weather")
		}),
		searcher: searcher,
		email: email.NewSender(func(o *email.Options) {
			o.Username = cfg.GmailUser
			o.Password = cfg.GmailPassword
			o.Host = cfg.SMTPHost
			o.Port = cfg.SMTPPort
			o.Timeout = cfg.SMTPTimeout
			o.Logger = component(logger, "email")
		}),
	}

	registry, err := tool.NewRegistry(
		tool.NewWeatherTool(m.weather),
		tool.NewWebSearchTool(m.searcher),
		tool.NewEmailTool(m.email),
		tool.NewAddMemoryTool(m.memory),
		tool.NewSearchMemoryTool(m.memory),
	)
	if err != nil {
		return nil, err
	}

	m.registry = registry

	return m, nil
}

// NewLogger builds the process logger from the log settings of cfg.
func NewLogger(cfg config.Config) *logging.ToolMeshLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLogLevel(cfg.LogLevel),
		Format:    strings.ToLower(cfg.LogFormat),
		Output:    os.Stderr,
		Component: "toolmesh",
	})
}

// component tags entries of a ToolMeshLogger with the adapter name. Other
// loggers are returned as is.
func component(l logging.Logger, name string) logging.Logger {
	if tl, ok := l.(*logging.ToolMeshLogger); ok {
		return tl.WithComponent(name)
	}
	return l
}

// PingMemory checks the memory credentials. With no store configured it
// returns memory.ErrMissingAPIKey.
func (m *ToolMesh) PingMemory(ctx context.Context) error {
	return m.memory.Ping(ctx)
}

// Config returns the configuration the mesh was built from.
func (m *ToolMesh) Config() config.Config { return m.cfg }

// Logger returns the shared logger.
func (m *ToolMesh) Logger() logging.Logger { return m.logger }

// Memory returns the fail-soft memory adapter.
func (m *ToolMesh) Memory() *memory.Adapter { return m.memory }

// Weather returns the wttr.in client.
func (m *ToolMesh) Weather() *weather.Client { return m.weather }

// Searcher returns the web searcher.
func (m *ToolMesh) Searcher() search.Searcher { return m.searcher }

// Email returns the SMTP sender.
func (m *ToolMesh) Email() *email.Sender { return m.email }

// Registry returns the tool registry.
func (m *ToolMesh) Registry() *tool.Registry { return m.registry }

// NewAgent returns an agent that can call every registered tool.
func (m *ToolMesh) NewAgent(llm model.Model, optFns ...func(o *agent.Options)) *agent.Agent {
	return agent.New("toolmesh", llm, m.registry, append([]func(o *agent.Options){func(o *agent.Options) {
		o.Logger = m.logger
	}}, optFns...)...)
}

// Handler returns the HTTP tool server for the registry.
func (m *ToolMesh) Handler(optFns ...func(o *server.Options)) *gin.Engine {
	return server.New(m.registry, append([]func(o *server.Options){func(o *server.Options) {
		o.DefaultUserID = m.cfg.UserID
		o.Logger = m.logger
	}}, optFns...)...)
}
