package main

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient reads tables out of photos with a Gemini model on Vertex AI.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient connects to Vertex AI for cfg.GCPProject in cfg.GCPRegion
// and scans with cfg.GeminiModel. Credentials come from the environment
// (Application Default Credentials).
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.GCPProject == "" {
		return nil, errors.New("gemini: no GCP project configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.GCPProject,
		Location: cfg.GCPRegion,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client for %s/%s: %w", cfg.GCPProject, cfg.GCPRegion, err)
	}
	return &GeminiClient{client: client, modelName: cfg.GeminiModel}, nil
}

// Close is a no-op; the genai client holds no connection to release.
func (g *GeminiClient) Close() error {
	return nil
}
