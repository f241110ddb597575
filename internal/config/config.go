package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	LogMode     string
	AllowOrigin string

	// static reference documents
	PublicDir     string
	AssetsBaseURL string

	// AI provider
	AIProvider        string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAIMaxTokens   int
	ModerationModel   string
	OllamaBaseURL     string
	OllamaModel       string

	// prompt
	SystemPrompt        string
	AllowedLinks        []string
	AllowedLinksInvalid bool

	// slack
	SlackBotToken      string
	SlackAlertsChannel string
	SlackTestChannel   string
	SlackAPIURL        string

	// persistence
	StoreBackend       string
	SupabaseURL        string
	SupabaseServiceKey string
	DBDSN              string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	// rabbitMQ
	RabbitURL      string
	RabbitExchange string
}

// Load reads the environment. Missing credentials are not an error here;
// handlers report them per request.
func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	allowOrigin := strings.TrimSpace(os.Getenv("ALLOW_ORIGIN"))
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	aiProvider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if aiProvider == "" {
		aiProvider = "openai"
	}

	openAIBaseURL := os.Getenv("OPENAI_BASE_URL")
	if openAIBaseURL == "" {
		openAIBaseURL = "https://api.openai.com/v1"
	}
	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	temperature := 0.4
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			temperature = f
		}
	}

	maxTokens := 400
	if v := os.Getenv("OPENAI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxTokens = n
		}
	}

	moderationModel := os.Getenv("OPENAI_MODERATION_MODEL")
	if moderationModel == "" {
		moderationModel = "omni-moderation-latest"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	alertsChannel := strings.TrimSpace(os.Getenv("SLACK_ALERTS_CHANNEL"))
	testChannel := strings.TrimSpace(os.Getenv("SLACK_CHANNEL_ID"))
	if testChannel == "" {
		testChannel = alertsChannel
	}

	storeBackend := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if storeBackend == "" {
		storeBackend = "supabase"
	}

	serviceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if serviceKey == "" {
		serviceKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	rabbitExchange := os.Getenv("RABBIT_EXCHANGE")
	if rabbitExchange == "" {
		rabbitExchange = "poppy.events"
	}

	allowedLinks, linksOK := parseAllowedLinks(os.Getenv("ALLOWED_LINKS"))

	return Config{
		Port:        port,
		LogMode:     os.Getenv("LOG_MODE"),
		AllowOrigin: allowOrigin,

		PublicDir:     os.Getenv("PUBLIC_DIR"),
		AssetsBaseURL: strings.TrimRight(os.Getenv("ASSETS_BASE_URL"), "/"),

		AIProvider:        aiProvider,
		OpenAIBaseURL:     openAIBaseURL,
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:       openAIModel,
		OpenAITemperature: temperature,
		OpenAIMaxTokens:   maxTokens,
		ModerationModel:   moderationModel,
		OllamaBaseURL:     ollamaBaseURL,
		OllamaModel:       ollamaModel,

		SystemPrompt:        strings.TrimSpace(os.Getenv("SYSTEM_PROMPT")),
		AllowedLinks:        allowedLinks,
		AllowedLinksInvalid: !linksOK,

		SlackBotToken:      strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")),
		SlackAlertsChannel: alertsChannel,
		SlackTestChannel:   testChannel,
		SlackAPIURL:        os.Getenv("SLACK_API_URL"),

		StoreBackend:       storeBackend,
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: strings.TrimSpace(serviceKey),
		DBDSN:              os.Getenv("DB_DSN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,

		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: rabbitExchange,
	}
}

// parseAllowedLinks decodes a JSON array of URL prefixes. ok is false only
// when raw is set but is not a JSON string array. An empty result disables
// link filtering.
func parseAllowedLinks(raw string) (links []string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var decoded []string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}
	for _, l := range decoded {
		if l = strings.TrimSpace(l); l != "" {
			links = append(links, l)
		}
	}
	return links, true
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAlertsChannel != ""
}
