package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML config file.
const FileEnv = "TULIP_CONFIG_FILE"

type loadPass int

const (
	passDefaults loadPass = iota
	passEnv
)

// Load builds the configuration: tag defaults, then the YAML file named by
// TULIP_CONFIG_FILE (if any), then environment variables. The result is
// validated before it is returned.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	root := reflect.ValueOf(cfg).Elem()

	if err := loadStruct(root, passDefaults); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
	}

	if err := loadStruct(root, passEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadStruct walks struct fields. passDefaults applies `default` tags;
// passEnv applies `env`/`envAlt` variables that are set and enforces
// `required`.
func loadStruct(v reflect.Value, pass loadPass) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, pass); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		var value string
		switch pass {
		case passDefaults:
			value = field.Tag.Get("default")
		case passEnv:
			value = os.Getenv(envName)
			if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
				value = os.Getenv(alt)
			}
			if value == "" && field.Tag.Get("required") == "true" && fieldVal.IsZero() {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.API.UseFullURL && c.API.Instance != "" &&
		!strings.HasPrefix(c.API.Instance, "http://") && !strings.HasPrefix(c.API.Instance, "https://") {
		errs = append(errs, fmt.Errorf("TULIP_INSTANCE (%q) must include http:// or https:// when TULIP_USE_FULL_URL is set", c.API.Instance))
	}
	if (c.API.APIKey == "") != (c.API.APISecret == "") {
		errs = append(errs, errors.New("TULIP_API_KEY and TULIP_API_SECRET must be set together"))
	}
	if c.API.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("TULIP_CONCURRENCY (%d) must be positive", c.API.Concurrency))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("TULIP_TIMEOUT must be positive"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("TULIP_RATE_LIMIT must be non-negative"))
	}

	if c.FakeAPI.Port <= 0 || c.FakeAPI.Port > 65535 {
		errs = append(errs, fmt.Errorf("FAKEAPI_PORT (%d) must be 1-65535", c.FakeAPI.Port))
	}
	if c.FakeAPI.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("FAKEAPI_SHUTDOWN_TIMEOUT must be positive"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// String returns a representation safe for logging; secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "API: {Instance: %q, UseFullURL: %v, Auth: %s, APIKey: %s, Concurrency: %d, Timeout: %s, RateLimit: %g}, ",
		c.API.Instance, c.API.UseFullURL, mask(c.API.Auth), mask(c.API.APIKey),
		c.API.Concurrency, c.API.Timeout, c.API.RateLimit)
	fmt.Fprintf(&b, "FakeAPI: {Addr: %q, Token: %s}, ", c.FakeAPI.Addr(), mask(c.FakeAPI.Token))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
