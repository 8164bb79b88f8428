package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal float64
		expected   float64
	}{
		{"parses float", "TEST_FLOAT_1", "0.25", 0.7, 0.25},
		{"uses default for empty", "TEST_FLOAT_2", "", 0.7, 0.7},
		{"uses default for garbage", "TEST_FLOAT_3", "warm", 0.7, 0.7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsFloatOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal time.Duration
		expected   time.Duration
	}{
		{"parses duration", "TEST_DUR_1", "250ms", time.Second, 250 * time.Millisecond},
		{"uses default for empty", "TEST_DUR_2", "", time.Second, time.Second},
		{"uses default for bare number", "TEST_DUR_3", "5", time.Second, time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsDurationOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	for _, key := range []string{"PORT", "GEMINI_TEMPERATURE", "GEMINI_TOP_P", "GEMINI_MAX_OUTPUT_TOKENS",
		"CHAT_DEFAULT_SESSION_ID", "CHAT_MAX_ATTEMPTS", "GEMINI_CONCURRENT_REQUESTS", "SESSION_STORE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "5001" {
		t.Errorf("Expected default port 5001, got %q", cfg.Port)
	}
	if cfg.GeminiTemperature != 0.7 || cfg.GeminiTopP != 0.95 || cfg.GeminiMaxOutputTokens != 500 {
		t.Errorf("Unexpected generation defaults: temp=%v topP=%v max=%d",
			cfg.GeminiTemperature, cfg.GeminiTopP, cfg.GeminiMaxOutputTokens)
	}
	if cfg.ChatDefaultSession != "default" {
		t.Errorf("Expected default session id 'default', got %q", cfg.ChatDefaultSession)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("Expected memory session store, got %q", cfg.SessionStore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory store", Config{SessionStore: "memory", ChatMaxAttempts: 3, GeminiConcurrentReqs: 1}, false},
		{"redis without url", Config{SessionStore: "redis", ChatMaxAttempts: 3, GeminiConcurrentReqs: 1}, true},
		{"redis with url", Config{SessionStore: "redis", RedisURL: "redis://localhost:6379/0", ChatMaxAttempts: 3, GeminiConcurrentReqs: 1}, false},
		{"unknown store", Config{SessionStore: "etcd", ChatMaxAttempts: 3, GeminiConcurrentReqs: 1}, true},
		{"zero attempts", Config{SessionStore: "memory", ChatMaxAttempts: 0, GeminiConcurrentReqs: 1}, true},
		{"zero concurrency", Config{SessionStore: "memory", ChatMaxAttempts: 1, GeminiConcurrentReqs: 0}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
