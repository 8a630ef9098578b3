package main

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/guideforge/engine/api"
	"github.com/guideforge/engine/browser"
	"github.com/guideforge/engine/browser/rodriver"
	"github.com/guideforge/engine/config"
	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/model/anthropic"
	"github.com/guideforge/engine/model/bedrock"
	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/script/filestore"
	"github.com/guideforge/engine/script/mongostore"
	"github.com/guideforge/engine/session"
	"github.com/guideforge/engine/telemetry"
	"github.com/guideforge/engine/workspace"
)

// app bundles everything a subcommand needs beyond the Facade itself: the
// loaded config and the registry/workspace for export/import, which don't
// go through the Facade.
type app struct {
	facade  *api.Facade
	scripts script.Registry
	ws      workspace.Workspace
	cfg     *config.Config
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("guideforge: load config: %w", err)
	}

	acct := accountID
	if acct == "" {
		acct = "default"
	}
	ws, err := workspace.New(cfg.WorkspaceRoot, acct, "default")
	if err != nil {
		return nil, fmt.Errorf("guideforge: open workspace: %w", err)
	}
	if err := ws.EnsureDir(); err != nil {
		return nil, fmt.Errorf("guideforge: ensure workspace dir: %w", err)
	}

	modelClient, err := newModelClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("guideforge: build model client: %w", err)
	}

	scripts, err := newScriptRegistry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("guideforge: build script registry: %w", err)
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewOtelMetrics()

	sessions := session.New(cfg.EventBufferSize, logger, metrics)

	drivers := api.DriverFactory(func(ctx context.Context) (browser.Driver, error) {
		return rodriver.New(!cfg.Debug)
	})

	facade := api.New(sessions, scripts, ws, modelClient, drivers, cfg, logger, metrics)

	return &app{facade: facade, scripts: scripts, ws: ws, cfg: cfg}, nil
}

func newModelClient(ctx context.Context, cfg *config.Config) (model.Client, error) {
	switch cfg.ModelProvider {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		rt := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.New(rt, bedrock.Options{DefaultModel: cfg.BedrockModelID})
	default:
		ac := sdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		return anthropic.New(&ac.Messages, anthropic.Options{DefaultModel: cfg.AnthropicModel})
	}
}

func newScriptRegistry(ctx context.Context, cfg *config.Config) (script.Registry, error) {
	if cfg.MongoURI == "" {
		return filestore.New(cfg.WorkspaceRoot + "/scripts/index.json")
	}
	client, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return mongostore.New(ctx, mongostore.Options{Client: client, Database: cfg.MongoDB})
}
