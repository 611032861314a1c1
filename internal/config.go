package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	ScriptDir      string `env:"SCRIPT_DIR,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	BufferSize       int           `env:"BUFFER_SIZE,required=true"`
	EventBufferSize  int           `env:"EVENT_BUFFER_SIZE,required=true"`
	MaxHistoryTokens int           `env:"MAX_HISTORY_TOKENS,required=true"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,required=true"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`
	RedactionTerms  string `env:"REDACTION_TERMS"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	OperatorEmail     string        `env:"OPERATOR_EMAIL"`
	OperatorPassword  string        `env:"OPERATOR_PASSWORD"`

	LLMBaseURL     string  `env:"LLM_BASE_URL"`
	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMModel       string  `env:"LLM_MODEL"`
	LLMMaxTokens   int     `env:"LLM_MAX_TOKENS"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE"`
	LLMMock        bool    `env:"LLM_MOCK,required=true"`
	LLMMockReply   string  `env:"LLM_MOCK_REPLY"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitTerms parses the comma separated redaction term list. An empty value
// disables redaction entirely.
func SplitTerms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
