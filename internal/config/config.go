// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete application configuration.
type Config struct {
	// DefaultModel is the model selected at startup
	DefaultModel string `toml:"default_model" json:"default_model"`

	Backend     BackendConfig     `toml:"backend" json:"backend"`
	Auth        AuthConfig        `toml:"auth" json:"auth"`
	Attachments AttachmentsConfig `toml:"attachments" json:"attachments"`
	UI          UIConfig          `toml:"ui" json:"ui"`
	Log         LogConfig         `toml:"log" json:"log"`
	Storage     StorageConfig     `toml:"storage" json:"storage"`
}

// BackendConfig describes the conversation endpoint.
type BackendConfig struct {
	// BaseURL is the API root; requests go to <BaseURL>/chatbot
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds a single round trip
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// ContentType is the content-type marker sent with requests
	ContentType string `toml:"content_type" json:"content_type"`
	// SendModel adds the selected model to request bodies
	SendModel bool `toml:"send_model" json:"send_model"`
}

// Timeout returns TimeoutSecs as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// AuthConfig describes where bearer tokens come from.
// Providers are tried in order: Token, TokenCommand, TokenFile.
type AuthConfig struct {
	// Token is a fixed bearer token (prefer CHATBOT_TOKEN over storing it here)
	Token string `toml:"token" json:"token"`
	// TokenFile is a session file written by a sign-in helper
	TokenFile string `toml:"token_file" json:"token_file"`
	// TokenCommand is a credential helper whose first output line is the token
	TokenCommand string `toml:"token_command" json:"token_command"`
}

// AttachmentsConfig limits pending image attachments.
type AttachmentsConfig struct {
	MaxBytes int64 `toml:"max_bytes" json:"max_bytes"`
	MaxCount int   `toml:"max_count" json:"max_count"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Locale selects the fixed strings ("es", "en")
	Locale string `toml:"locale" json:"locale"`
	// MarkdownStyle is a glamour style name or "auto"
	MarkdownStyle string `toml:"markdown_style" json:"markdown_style"`
	// CodeStyle is a chroma style name
	CodeStyle string `toml:"code_style" json:"code_style"`
	// LineNumbers shows line numbers in code blocks
	LineNumbers bool `toml:"line_numbers" json:"line_numbers"`
	// ShowIndex prefixes each turn with its history index
	ShowIndex bool `toml:"show_index" json:"show_index"`
	// AltScreen runs the TUI in the alternate screen buffer
	AltScreen bool `toml:"alt_screen" json:"alt_screen"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is "console" or "json"
	Format string `toml:"format" json:"format"`
	// File is the log file path; empty disables file logging
	File string `toml:"file" json:"file"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `toml:"max_backups" json:"max_backups"`
	// MaxAgeDays is the age after which rotated files are removed
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days"`
	// WithCaller adds file:line to each entry
	WithCaller bool `toml:"with_caller" json:"with_caller"`
}

// StorageConfig controls transcript export.
type StorageConfig struct {
	// Dir is the transcript directory (empty = ~/.chatbot/transcripts)
	Dir string `toml:"dir" json:"dir"`
	// MaxTranscripts is the number of saved transcripts kept
	MaxTranscripts int `toml:"max_transcripts" json:"max_transcripts"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultModel: model.DefaultModelID,
		Backend: BackendConfig{
			TimeoutSecs: 60,
			ContentType: "text/plain",
		},
		Attachments: AttachmentsConfig{
			MaxBytes: 5 << 20,
			MaxCount: 8,
		},
		UI: UIConfig{
			Locale:        i18n.DefaultLocale,
			MarkdownStyle: "auto",
			CodeStyle:     "monokai",
			LineNumbers:   true,
			ShowIndex:     true,
			AltScreen:     true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Storage: StorageConfig{
			MaxTranscripts: 100,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory path.
// CHATBOT_HOME overrides the default ~/.chatbot.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CHATBOT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".chatbot"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// TranscriptDir returns the resolved transcript directory.
func (c *Config) TranscriptDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transcripts"), nil
}

// ensureSecurePermissions tightens permissions on config files.
// SECURITY: Config files may hold tokens and should be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// A missing file yields defaults; .env and environment overrides apply
// either way.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "load config from %s", path)
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Not fatal: permissions may not be fixable on every filesystem.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrap(err, "decode TOML file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path.
// SECURITY: Config files are written 0600 inside a 0700 directory.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# chatbot configuration file\n")
	buf.WriteString("# Generated by chatbot - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}

	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
// An empty base URL is allowed here; commands that talk to the backend
// check it with RequireBackend.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "backend.base_url",
				Message: fmt.Sprintf("invalid URL '%s', must be absolute http(s)", c.Backend.BaseURL),
			})
		}
	}
	if c.Backend.TimeoutSecs <= 0 || c.Backend.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Backend.TimeoutSecs),
		})
	}

	if _, ok := model.GetModelInfo(c.DefaultModel); !ok {
		errs = append(errs, ValidationError{
			Field:   "default_model",
			Message: fmt.Sprintf("unknown model '%s', must be one of: %s", c.DefaultModel, strings.Join(model.ModelIDs(), ", ")),
		})
	}

	if _, ok := i18n.Lookup(c.UI.Locale); !ok {
		errs = append(errs, ValidationError{
			Field:   "ui.locale",
			Message: fmt.Sprintf("unsupported locale '%s', must be one of: %s", c.UI.Locale, strings.Join(i18n.Locales(), ", ")),
		})
	}

	if c.Attachments.MaxBytes <= 0 {
		errs = append(errs, ValidationError{Field: "attachments.max_bytes", Message: "must be positive"})
	}
	if c.Attachments.MaxCount <= 0 {
		errs = append(errs, ValidationError{Field: "attachments.max_count", Message: "must be positive"})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be console or json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ErrNoBaseURL is returned by RequireBackend when no endpoint is configured.
var ErrNoBaseURL = errors.New("backend.base_url is not set (use CHATBOT_API_URL or the config file)")

// RequireBackend reports whether the backend can be contacted.
func (c *Config) RequireBackend() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return ErrNoBaseURL
	}
	return nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.ContentType == "" {
		c.Backend.ContentType = d.Backend.ContentType
	}
	if c.Attachments.MaxBytes == 0 {
		c.Attachments.MaxBytes = d.Attachments.MaxBytes
	}
	if c.Attachments.MaxCount == 0 {
		c.Attachments.MaxCount = d.Attachments.MaxCount
	}
	if c.UI.Locale == "" {
		c.UI.Locale = d.UI.Locale
	}
	if c.UI.MarkdownStyle == "" {
		c.UI.MarkdownStyle = d.UI.MarkdownStyle
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = d.UI.CodeStyle
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
	if c.Storage.MaxTranscripts == 0 {
		c.Storage.MaxTranscripts = d.Storage.MaxTranscripts
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - CHATBOT_API_URL: overrides backend.base_url
//   - CHATBOT_TOKEN: overrides auth.token
//   - CHATBOT_TOKEN_FILE: overrides auth.token_file
//   - CHATBOT_TOKEN_COMMAND: overrides auth.token_command
//   - CHATBOT_MODEL: overrides default_model
//   - CHATBOT_LOCALE: overrides ui.locale
//   - CHATBOT_LOG_LEVEL: overrides log.level
//   - CHATBOT_LOG_FILE: overrides log.file
//   - CHATBOT_TIMEOUT: overrides backend.timeout_secs
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATBOT_API_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("CHATBOT_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("CHATBOT_TOKEN_FILE"); v != "" {
		c.Auth.TokenFile = v
	}
	if v := os.Getenv("CHATBOT_TOKEN_COMMAND"); v != "" {
		c.Auth.TokenCommand = v
	}
	if v := os.Getenv("CHATBOT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("CHATBOT_LOCALE"); v != "" {
		c.UI.Locale = v
	}
	if v := os.Getenv("CHATBOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHATBOT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("CHATBOT_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = secs
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.locale").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.locale").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dotted key against the toml tags of Config.
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()

	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, errors.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid integer value")
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return errors.Wrap(err, "invalid boolean value")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
			if t.Field(i).Type.Kind() == reflect.Struct {
				walk(t.Field(i).Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON rendering with secrets redacted.
// SECURITY: Tokens must never appear in logs or terminal output.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Auth.Token != "" {
		safe.Auth.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
