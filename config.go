package main

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MYSTERY"

// AppConfig holds all CLI configuration.
// Priority (lowest → highest): defaults < JSON config file < MYSTERY_* env vars < CLI flags.
type AppConfig struct {
	DB            string `mapstructure:"db"`             // sqlite connection string
	Dev           bool   `mapstructure:"dev"`            // dev mode: db dumps on errors
	AdminPassword string `mapstructure:"admin_password"` // empty disables the admin gate
	LogFile       string `mapstructure:"log_file"`       // also write log lines here

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `mapstructure:"log_output_dir"`
	LogDB        bool   `mapstructure:"log_db"`
	LogMutations bool   `mapstructure:"log_mutations"`
	LogDebug     bool   `mapstructure:"log_debug"`

	// Backstory drafting
	BackstoryProvider    string `mapstructure:"backstory_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	BackstoryModel       string `mapstructure:"backstory_model"`       // model name
	BackstoryOllamaURL   string `mapstructure:"backstory_ollama_url"`  // Ollama server URL
	BackstoryURL         string `mapstructure:"backstory_url"`         // base URL for openai-compatible
	BackstoryAPIKey      string `mapstructure:"backstory_api_key"`     // API key for openai-compatible
	BackstoryTemperature string `mapstructure:"backstory_temperature"` // float 0-1 as string
	BackstoryThinking    string `mapstructure:"backstory_thinking"`    // none | low | medium | high | auto
	GroqAPIKey           string `mapstructure:"groq_api_key"`          // API key for groq provider
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:    cfg.LogOutputDir,
		LogDB:        cfg.LogDB,
		LogMutations: cfg.LogMutations,
		Debug:        cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:                 "mystery.db",
		BackstoryOllamaURL: "http://localhost:11434",
	}
}

// registerFlags registers all persistent CLI flags on flags.
func registerFlags(flags *pflag.FlagSet) {
	def := defaultConfig()

	flags.String("config", "config.json", "path to JSON config file")
	flags.String("db", def.DB, "database connection string (env: MYSTERY_DB)")
	flags.Bool("dev", false, "enable development mode (db dumps on error) (env: MYSTERY_DEV)")
	flags.String("admin-password", "", "password required by organizer commands; empty disables the check (env: MYSTERY_ADMIN_PASSWORD)")
	flags.String("log-file", "", "also append log lines to this file (env: MYSTERY_LOG_FILE)")
	flags.String("log-output-dir", "", "directory for extended log files (env: MYSTERY_LOG_OUTPUT_DIR)")
	flags.Bool("log-db", false, "log database dumps after every write (env: MYSTERY_LOG_DB)")
	flags.Bool("log-mutations", false, "keep an audit log of every change (env: MYSTERY_LOG_MUTATIONS)")
	flags.Bool("log-debug", false, "enable debug logging (env: MYSTERY_LOG_DEBUG)")
	flags.String("backstory-provider", "", "backstory drafting provider (ollama|openai|claude|gemini|groq|openai-compatible)")
	flags.String("backstory-model", "", "backstory drafting model name")
	flags.String("backstory-ollama-url", def.BackstoryOllamaURL, "Ollama server URL")
	flags.String("backstory-url", "", "base URL for openai-compatible provider")
	flags.String("backstory-api-key", "", "API key for openai-compatible provider")
	flags.String("backstory-temperature", "", "sampling temperature 0-1")
	flags.String("backstory-thinking", "", "thinking mode: none|low|medium|high|auto")
	flags.String("groq-api-key", "", "Groq API key")
}

// loadConfig layers the JSON config file, MYSTERY_* env vars and any flags
// that were explicitly set in flags over the defaults.
func loadConfig(flags *pflag.FlagSet) (AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		bindErr = errors.Join(bindErr, v.BindPFlag(key, f), v.BindEnv(key))
	})
	if bindErr != nil {
		return AppConfig{}, bindErr
	}

	configPath, _ := flags.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Config: failed to read %s: %v", configPath, err)
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
