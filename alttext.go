package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// maxAltTextLength caps generated descriptions
const maxAltTextLength = 1000

// AltTextWriter describes an image for screen readers
type AltTextWriter interface {
	Describe(ctx context.Context, record *ImageRecord, data []byte) (string, error)
}

// ClaudeAltTextWriter generates alt text with an Anthropic model
type ClaudeAltTextWriter struct {
	apiKey       string
	systemPrompt string
	settings     AltTextWriterSettings
}

// NewClaudeAltTextWriter creates an alt text writer using apiKey
func NewClaudeAltTextWriter(apiKey string, settings AltTextWriterSettings) (*ClaudeAltTextWriter, error) {
	if apiKey == "" {
		return nil, errors.New("API key required: set ANTHROPIC_API_KEY in the credentials file or environment")
	}
	return &ClaudeAltTextWriter{
		apiKey:       apiKey,
		systemPrompt: strings.TrimSpace(defaultAltTextPrompt),
		settings:     settings,
	}, nil
}

// Describe uploads the image and asks the model for a short description
func (w *ClaudeAltTextWriter) Describe(ctx context.Context, record *ImageRecord, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp("", "copostr-*.jpg")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("closing temporary file: %w", err)
	}

	file, err := anthropic.UploadFile(tempFile.Name(), w.apiKey)
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}

	userPrompt := fmt.Sprintf("Write alt text for the attached image. Its title is %q.", record.Title)
	settings := types.RequestSettings{
		Model:       w.settings.Model,
		MaxTokens:   w.settings.MaxTokens,
		Temperature: w.settings.Temperature,
	}
	response, err := anthropic.PromptWithSettings(w.systemPrompt, userPrompt, "", w.apiKey, settings, types.File{ID: file.ID})
	if err != nil {
		return "", fmt.Errorf("alt text agent failed: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return cleanAltText(response.Content[0].Text), nil
}

// cleanAltText trims quotes and whitespace the model tends to add
func cleanAltText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"`)
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxAltTextLength {
		text = strings.TrimSpace(text[:maxAltTextLength])
	}
	return text
}
