package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	liblog "trpc.group/trpc-go/trpc-a2a-go/log"

	"github.com/tuannvm/jira-tracker/internal/agents"
	"github.com/tuannvm/jira-tracker/internal/config"
	"github.com/tuannvm/jira-tracker/internal/jira"
	log "github.com/tuannvm/jira-tracker/internal/logging"
)

func main() {
	if err := config.LoadFile(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.NewConfig()

	if err := log.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialise logging: %v", err)
	}
	defer log.Sync()
	// Route the tRPC-A2A-Go internal logger through ours
	liblog.Default = log.Logger

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tracker, err := jira.NewIssueTrackerFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create issue tracker: %v", err)
	}
	agent := agents.NewTrackerAgent(cfg, tracker)

	if err := agent.SetupA2AServer(); err != nil {
		log.Fatalf("Failed to setup A2A server: %v", err)
	}
	if err := agent.SetupHTTPServer(); err != nil {
		log.Fatalf("Failed to setup webhook server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("%s tracking %s, A2A on %s:%d, webhooks on %s:%d",
		cfg.AgentName, cfg.JiraBaseURL, cfg.ServerHost, cfg.ServerPort, cfg.ServerHost, cfg.WebhookPort)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return agent.StartA2AServer(ctx) })
	g.Go(func() error { return agent.StartHTTPServer(ctx) })
	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Infof("Server shutdown complete")
}
