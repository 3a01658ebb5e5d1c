package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gardar/redactra/pkg/gdocai"
	"github.com/gardar/redactra/pkg/rules"
)

type yamlConfig struct {
	ProjectID       string   `yaml:"project_id"`
	Location        string   `yaml:"location"`
	ProcessorID     string   `yaml:"processor_id"`
	CredentialsFile string   `yaml:"credentials_file"`
	NERURL          string   `yaml:"ner_url"`
	RulesURL        string   `yaml:"rules_url"`
	Jurisdiction    string   `yaml:"jurisdiction"`
	RegexCategories []string `yaml:"regex_categories"`
	Strip           []string `yaml:"strip"`
	Compress        *bool    `yaml:"compress"`
	LogLevel        string   `yaml:"log_level"`
}

// config is the resolved CLI configuration.
type config struct {
	DocAI           gdocai.Config
	NERURL          string
	RulesURL        string
	Jurisdiction    string
	RegexCategories []string
	Strip           []string // nil = strip every present field
	Compress        bool
	LogLevel        slog.Level
}

// loadConfig reads the optional YAML file, then lets REDACT_* environment variables
// (and a .env file in the working directory) override it.
func loadConfig(path string) (*config, error) {
	cfg := &config{
		DocAI:    gdocai.Config{Location: "us"},
		NERURL:   "http://sanitize-ner:8001",
		RulesURL: rules.DefaultIndexURL,
		Compress: true,
		LogLevel: slog.LevelInfo,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var yc yamlConfig
		if err := yaml.Unmarshal(data, &yc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := cfg.applyYAML(yc); err != nil {
			return nil, err
		}
	}

	// Best effort; a missing .env is fine
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) applyYAML(yc yamlConfig) error {
	setString(&c.DocAI.ProjectID, yc.ProjectID)
	setString(&c.DocAI.Location, yc.Location)
	setString(&c.DocAI.ProcessorID, yc.ProcessorID)
	setString(&c.DocAI.CredentialsFile, yc.CredentialsFile)
	setString(&c.NERURL, yc.NERURL)
	setString(&c.RulesURL, yc.RulesURL)
	setString(&c.Jurisdiction, yc.Jurisdiction)
	if len(yc.RegexCategories) > 0 {
		c.RegexCategories = yc.RegexCategories
	}
	if yc.Strip != nil {
		c.Strip = yc.Strip
	}
	if yc.Compress != nil {
		c.Compress = *yc.Compress
	}
	if yc.LogLevel != "" {
		return c.LogLevel.UnmarshalText([]byte(yc.LogLevel))
	}
	return nil
}

func (c *config) applyEnv() error {
	setString(&c.DocAI.ProjectID, os.Getenv("REDACT_PROJECT_ID"))
	setString(&c.DocAI.Location, os.Getenv("REDACT_LOCATION"))
	setString(&c.DocAI.ProcessorID, os.Getenv("REDACT_PROCESSOR_ID"))
	setString(&c.NERURL, os.Getenv("REDACT_NER_URL"))
	setString(&c.RulesURL, os.Getenv("REDACT_RULES_URL"))
	setString(&c.Jurisdiction, os.Getenv("REDACT_JURISDICTION"))
	if raw := strings.TrimSpace(os.Getenv("REDACT_REGEX_CATEGORIES")); raw != "" {
		c.RegexCategories = splitList(raw)
	}
	if raw, ok := os.LookupEnv("REDACT_STRIP"); ok {
		c.Strip = splitList(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("REDACT_COMPRESS")); raw != "" {
		c.Compress = raw == "1" || strings.EqualFold(raw, "true")
	}
	if raw := strings.TrimSpace(os.Getenv("REDACT_LOG_LEVEL")); raw != "" {
		if err := c.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("REDACT_LOG_LEVEL: %w", err)
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// splitList splits a comma separated list, dropping empty entries. "none" yields an
// empty, non-nil list.
func splitList(raw string) []string {
	out := []string{}
	if strings.EqualFold(strings.TrimSpace(raw), "none") {
		return out
	}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
