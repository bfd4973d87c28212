package main

import (
	"log/slog"
	"strings"
	"sync"

	"casefile/internal/config"
	"casefile/internal/confirm"
	"casefile/internal/excerpt"
	"casefile/internal/identity"
	"casefile/internal/ingest"
	"casefile/internal/linking"
	"casefile/internal/logging"
	"casefile/internal/store"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withStore opens the ledger for one command invocation and closes it when
// the command finishes.
func (c *commandContext) withStore(fn func(*store.Store, *config.Config) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st, cfg)
}

func (c *commandContext) newGateway(st *store.Store) *ingest.Gateway {
	return ingest.NewGateway(st, c.newResolver(st), c.ensureLogger())
}

func (c *commandContext) newResolver(st *store.Store) *identity.Resolver {
	return identity.NewResolver(st, c.ensureLogger())
}

func (c *commandContext) newExtractor(st *store.Store, cfg *config.Config) *excerpt.Extractor {
	return excerpt.NewExtractor(st, cfg.Excerpt.MaxLength, c.ensureLogger())
}

func (c *commandContext) newLinker(st *store.Store, cfg *config.Config) *linking.Linker {
	return linking.NewLinker(st, cfg.Linking, c.ensureLogger())
}

func (c *commandContext) newGate(st *store.Store, cfg *config.Config) *confirm.Gate {
	return confirm.NewGate(st, cfg.GateLockPath(), confirm.Thresholds{
		AutoConfirm:   cfg.Gate.AutoConfirmThreshold,
		LowConfidence: cfg.Gate.LowConfidenceThreshold,
	}, c.ensureLogger())
}
