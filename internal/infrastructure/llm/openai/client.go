// Package openai adapts the OpenAI-compatible embedding and chat APIs to
// the pipeline's provider ports, with classified retry/backoff on top.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/resilience"
)

const (
	generateMaxTokens   = 700
	generateTemperature = 0.1
)

var errNoAPIKey = errors.New("api key missing")

type Client struct {
	api             *gopenai.Client
	executor        *resilience.Executor
	embedModel      string
	modelCandidates []string
	configured      bool
}

// New builds a provider client. An empty apiKey yields a client whose calls
// fail with domain.ErrNotConfigured so the pipeline can degrade locally.
func New(apiKey, baseURL, embedModel string, modelCandidates []string, executor *resilience.Executor) *Client {
	cfg := gopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		api:             gopenai.NewClientWithConfig(cfg),
		executor:        executor,
		embedModel:      embedModel,
		modelCandidates: modelCandidates,
		configured:      strings.TrimSpace(apiKey) != "",
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.client.configured {
		return nil, domain.WrapError(domain.ErrNotConfigured, "embed", errNoAPIKey)
	}

	var vector []float32
	err := e.client.executor.Execute(ctx, "embed", func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
			Input: []string{text},
			Model: gopenai.EmbeddingModel(e.client.embedModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding result")
		}
		vector = resp.Data[0].Embedding
		return nil
	}, classifyProviderError)
	if err != nil {
		return nil, toDomainError("embed", err)
	}
	return vector, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate walks the ordered model-candidate ladder; the first candidate
// producing non-empty text wins. When every candidate fails the last error
// propagates with the provider taxonomy.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, string, error) {
	if !g.client.configured {
		return "", "", domain.WrapError(domain.ErrNotConfigured, "generate", errNoAPIKey)
	}
	if len(g.client.modelCandidates) == 0 {
		return "", "", domain.WrapError(domain.ErrNotConfigured, "generate", errors.New("no model candidates configured"))
	}

	var lastErr error
	for _, model := range g.client.modelCandidates {
		var text string
		err := g.client.executor.Execute(ctx, "generate:"+model, func(ctx context.Context) error {
			resp, err := g.client.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
				Model: model,
				Messages: []gopenai.ChatCompletionMessage{
					{Role: gopenai.ChatMessageRoleUser, Content: prompt},
				},
				MaxTokens:   generateMaxTokens,
				Temperature: generateTemperature,
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("no choices returned")
			}
			text = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		}, classifyProviderError)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, model, nil
		}
		lastErr = fmt.Errorf("model %s returned empty output", model)
	}
	return "", "", toDomainError("generate", lastErr)
}
