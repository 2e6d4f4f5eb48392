package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/catalog"
	"github.com/ashutoshrp06/parcel-agent/internal/config"
	"github.com/ashutoshrp06/parcel-agent/internal/gmail"
	"github.com/ashutoshrp06/parcel-agent/internal/llm"
	"github.com/ashutoshrp06/parcel-agent/internal/server"
	"github.com/ashutoshrp06/parcel-agent/internal/store"
	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/internal/validator"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	store    *store.Client
	llm      *llm.Client
	registry *tools.Registry
	agent    *agent.Agent
	auth     *gmail.Authenticator
	mail     *gmail.Service
	index    *catalog.Index
	input    *validator.InputValidator
	logger   *zap.Logger
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		input:  validator.NewInputValidatorWithLimits(1, cfg.Agent.MaxQueryLength),
	}

	a.store = store.NewClient(store.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    config.Seconds(cfg.Backend.TimeoutSeconds),
		MaxRetries: cfg.Backend.MaxRetries,
	}, logger.Named("store"))

	a.llm = llm.NewClient(llm.Config{
		Endpoint:       cfg.LLM.Endpoint,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        config.Seconds(cfg.LLM.TimeoutSeconds),
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
	})

	a.auth = gmail.NewAuthenticator(gmail.AuthConfig{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RedirectURL:  cfg.Gmail.RedirectURL,
		TokenPath:    cfg.Gmail.TokenPath,
	}, logger.Named("gmail"))
	a.mail = gmail.NewService(a.auth, logger.Named("gmail"))

	a.registry = tools.NewRegistry()
	if err := tools.RegisterStoreTools(a.registry, a.store); err != nil {
		return nil, err
	}
	if err := tools.RegisterMailTools(a.registry, a.mail); err != nil {
		return nil, err
	}

	if cfg.Catalog.Enabled {
		index, err := a.openIndex()
		if err != nil {
			return nil, err
		}
		a.index = index
		if err := tools.RegisterCatalogTools(a.registry, index, cfg.Catalog.TopK, cfg.Catalog.MinScore); err != nil {
			return nil, err
		}
	}

	prompt := ""
	if path := cfg.Agent.SystemPromptPath; path != "" {
		var err error
		prompt, err = llm.LoadSystemPrompt(path, a.registry.Specs())
		if err != nil {
			logger.Warn("Using built-in system prompt", zap.String("path", path), zap.Error(err))
		}
	}

	ag, err := agent.New(agent.Config{
		Model:         a.llm,
		Registry:      a.registry,
		SystemPrompt:  prompt,
		MaxIterations: cfg.Agent.MaxIterations,
		ToolTimeout:   config.Seconds(cfg.Agent.ToolTimeoutSeconds),
		RunTimeout:    config.Seconds(cfg.Agent.RunTimeoutSeconds),
		ModelInfo:     a.llm.ModelInfo(),
		Logger:        logger.Named("agent"),
	})
	if err != nil {
		return nil, err
	}
	a.agent = ag

	return a, nil
}

func (a *app) openIndex() (*catalog.Index, error) {
	index, err := catalog.NewIndex(catalog.Config{
		Host:       a.cfg.Catalog.Host,
		Port:       a.cfg.Catalog.Port,
		APIKey:     a.cfg.Catalog.APIKey,
		Collection: a.cfg.Catalog.Collection,
		Dimension:  a.cfg.Catalog.Dimension,
	}, a.llm, a.logger.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return index, nil
}

// authenticator returns the OAuth flow for the HTTP server, or nil when no
// Gmail client is configured.
func (a *app) authenticator() server.Authenticator {
	if a.cfg.Gmail.ClientID == "" {
		return nil
	}
	return a.auth
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("Failed to close catalog", zap.Error(err))
		}
	}
}
