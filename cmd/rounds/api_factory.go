package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/config"
)

// newAPIClient creates the Anthropic client from loaded configuration,
// honoring the Bedrock toggle and model override.
func newAPIClient(cfg *config.Config, modelOverride string) (*api.Client, error) {
	model := cfg.Anthropic.Model
	if modelOverride != "" {
		model = modelOverride
	}

	apiKey := ""
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		apiKey = key
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
