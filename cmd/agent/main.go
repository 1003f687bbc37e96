// Package main runs an ADK agent that shares long-term memory with the
// memory service: it reads and writes the same store through memory tools
// and the ADK memory.Service bridge.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/template"

	"github.com/sirupsen/logrus"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/easeaico/convo-memory/internal/config"
	"github.com/easeaico/convo-memory/internal/llm"
	"github.com/easeaico/convo-memory/internal/memory"
	"github.com/easeaico/convo-memory/internal/tools"
)

const agentModel = "gemini-2.0-flash"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.GoogleAPIKey == "" {
		logrus.Fatal("GOOGLE_API_KEY environment variable is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("Shutting down...")
		cancel()
	}()

	llmAgent, memoryService, cleanup, err := initializeAgent(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize agent: %v", err)
	}
	defer cleanup()

	// Run interactive loop using adk-go runtime (launcher)
	launcherCfg := &launcher.Config{
		AgentLoader:   agent.NewSingleLoader(llmAgent),
		MemoryService: memoryService,
	}
	l := full.NewLauncher()
	if err := l.Execute(ctx, launcherCfg, os.Args[1:]); err != nil {
		logrus.Fatalf("Failed to run agent: %v\n\n%s", err, l.CommandLineSyntax())
	}
}

// initializeAgent creates and initializes all components.
func initializeAgent(ctx context.Context, cfg config.Config) (agent.Agent, *memory.ADKService, func(), error) {
	store, err := memory.Open(ctx, cfg.StoreBackend, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	store = memory.WithTimeout(store, cfg.StoreTimeout)

	// extraction and embeddings follow LLM_PROVIDER so facts stay comparable
	// with the ones written by the HTTP service
	client, err := llm.New(ctx, llm.Options{
		Provider:   cfg.LLMProvider,
		BaseURL:    providerBaseURL(cfg),
		APIKey:     providerAPIKey(cfg),
		ChatModel:  cfg.ChatModel,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.LLMTimeout,
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	index := memory.NewEpisodicIndex(store, client)

	agentTools, err := tools.BuildTools(tools.NewHandler(index, store, cfg.EpisodicTopK))
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to build tools: %w", err)
	}

	// Create LLM model using ADK's gemini wrapper
	llmModel, err := gemini.NewModel(ctx, agentModel, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "memory_assistant",
		Description: "A conversational assistant that remembers its users across sessions",
		Model:       llmModel,
		Instruction: buildInstruction(agentTools),
		Tools:       agentTools,
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create agent: %w", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close store")
		}
	}

	logrus.WithFields(logrus.Fields{
		"store":    cfg.StoreBackend,
		"provider": cfg.LLMProvider,
		"tools":    len(agentTools),
	}).Info("Agent initialized")
	return llmAgent, memory.NewADKService(index, cfg.EpisodicTopK), cleanup, nil
}

func providerBaseURL(cfg config.Config) string {
	if cfg.LLMProvider == llm.ProviderOpenAI {
		return cfg.OpenAIBaseURL
	}
	return cfg.OllamaBaseURL
}

func providerAPIKey(cfg config.Config) string {
	if cfg.LLMProvider == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.GoogleAPIKey
}

var instructionTmpl = template.Must(template.New("instruction").Funcs(template.FuncMap{"inc": inc}).Parse(`
You are a friendly assistant with long-term memory of the user you are talking to.

You have the following tools:
{{- range $idx, $name := .Tools }}
{{ inc $idx }}. {{ $name }}
{{- end }}

When answering:
- Call get_user_profile at the start of a conversation to recall who the user is
- Call recall_facts before answering questions about the user's preferences or past
- Call remember when the user shares something durable about themselves
- Keep responses brief and helpful
`))

// inc is a small helper for incrementing index
func inc(i int) int { return i + 1 }

type namedTool interface{ Name() string }

// buildInstruction renders the system instruction listing the agent's tools.
func buildInstruction[T namedTool](agentTools []T) string {
	names := make([]string, 0, len(agentTools))
	for _, t := range agentTools {
		names = append(names, t.Name())
	}

	var buf bytes.Buffer
	_ = instructionTmpl.Execute(&buf, struct{ Tools []string }{Tools: names})
	return buf.String()
}
