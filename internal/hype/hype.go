package hype

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

const promptTemplate = `Generate a short, energetic, hype-up welcome message (max 2 sentences) in Russian
for a dancer named "%s" who just registered for the "%s" categories
at the "Йолка" (Yolka) street dance festival.
Use slang appropriate for hip-hop/breaking culture.
Don't use quotes.`

// contentGenerator is satisfied by genai's Models service.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces the congratulation shown after a registration. It never
// fails: without a key, or when the API misbehaves, it returns a fixed text.
type Generator struct {
	models contentGenerator
	model  string
	log    *zap.Logger
}

// New decides once whether the API is usable. An empty key is a valid
// configuration and selects the fallback text. httpClient bounds each call
// with its timeout; nil uses genai's default client.
func New(ctx context.Context, apiKey, model string, httpClient *http.Client, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{model: model, log: log.Named("hype")}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		g.log.Warn("Gemini API key is missing, using fallback messages")
		return g
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		g.log.Warn("create Gemini client", zap.Error(err))
		return g
	}
	g.models = client.Models
	return g
}

func (g *Generator) Enabled() bool { return g.models != nil }

func (g *Generator) Generate(ctx context.Context, nickname string, nominations []string) string {
	joined := strings.Join(nominations, ", ")
	if g.models == nil {
		return WelcomeFallback(nickname, joined)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(fmt.Sprintf(promptTemplate, nickname, joined)), nil)
	if err != nil {
		g.log.Warn("Gemini API error", zap.Error(err))
		return AcceptedFallback(nickname, joined)
	}
	if resp == nil {
		g.log.Warn("Gemini returned no response")
		return AcceptedFallback(nickname, joined)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.log.Warn("Gemini returned empty text")
		return AcceptedFallback(nickname, joined)
	}
	return text
}

func WelcomeFallback(nickname, nominations string) string {
	return fmt.Sprintf("Добро пожаловать на Йолку, %s! Удачи в номинациях: %s!", nickname, nominations)
}

func AcceptedFallback(nickname, nominations string) string {
	return fmt.Sprintf("Йо, %s! Твоя заявка принята. Порви всех в категориях: %s!", nickname, nominations)
}
