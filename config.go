package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/complaint"
	"github.com/aegis-safety/intake/internal/complaint/firestore"
	"github.com/aegis-safety/intake/internal/complaint/sqlite"
	"github.com/aegis-safety/intake/internal/core"
	pkgredis "github.com/aegis-safety/intake/pkg/redis"
	"github.com/aegis-safety/intake/pkg/tracing"
)

// AppConfig defines all configurable parameters of the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	SessionStore       string `envconfig:"SESSION_STORE" default:"memory"`
	ComplaintStore     string `envconfig:"COMPLAINT_STORE" default:"sqlite"`
	SQLitePath         string `envconfig:"SQLITE_PATH" default:"intake.db"`
	FirestoreProjectID string `envconfig:"FIRESTORE_PROJECT_ID"`
	Redis              pkgredis.Config
	Tracing            tracing.Config

	// Agent configs
	Backend      model.BackendConfig
	Interviewer  model.InterviewerModelConfig
	Prompt       model.InterviewerPromptConfig
	Conversation model.ConversationConfig
	Extraction   model.ExtractionConfig
}

func loadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		// a missing .env is normal outside local runs
		_ = godotenv.Load(envFile)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

func (c *AppConfig) ConversationTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Conversation.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", c.Conversation.TTL, err)
	}
	return ttl, nil
}

// Cues returns the extraction grammar, from EXTRACTION_CUES_FILE when set.
func (c *AppConfig) Cues() (parsers.CueSet, error) {
	if c.Extraction.CuesFile == "" {
		return parsers.DefaultCues(), nil
	}
	return parsers.LoadCues(c.Extraction.CuesFile)
}

func (c *AppConfig) OpenComplaintStore(ctx context.Context) (complaint.Store, error) {
	switch strings.ToLower(c.ComplaintStore) {
	case "", "sqlite":
		store, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "firestore":
		store, err := firestore.NewStore(ctx, c.FirestoreProjectID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown COMPLAINT_STORE %q", c.ComplaintStore)
	}
}
