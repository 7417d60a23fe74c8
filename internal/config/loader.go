package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// populate walks the nested section structs and fills every field carrying
// an env tag.
func populate(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := populate(fv); err != nil {
				return err
			}
			continue
		}

		name, raw, ok, err := lookup(field)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookup resolves the raw value for a field: the env var, then its
// alternate, then the default. ok is false when nothing applies.
func lookup(field reflect.StructField) (name, raw string, ok bool, err error) {
	name = field.Tag.Get("env")
	if name == "" {
		return "", "", false, nil
	}

	raw = os.Getenv(name)
	if raw == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			raw = os.Getenv(alt)
		}
	}
	if raw == "" {
		if field.Tag.Get("required") == "true" {
			return name, "", false, fmt.Errorf("required environment variable %s is not set", name)
		}
		raw = field.Tag.Get("default")
	}
	return name, raw, raw != "", nil
}

// assign parses raw into the field according to its kind.
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// problems collects validation failures across sections.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, msg string) {
	if !ok {
		*p = append(*p, msg)
	}
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var p problems
	c.Storage.validate(&p)
	c.Server.validate(&p)
	c.Import.validate(&p)
	c.Roster.validate(&p)
	c.Rate.validate(&p)
	c.Security.validate(&p)
	c.Logging.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (s StorageConfig) validate(p *problems) {
	switch strings.ToLower(s.Driver) {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if s.URL == "" {
			p.addf("DATABASE_URL is required when STORAGE_DRIVER=%s", s.Driver)
		}
	default:
		p.addf("STORAGE_DRIVER (%q) must be one of: memory, postgres, sqlite", s.Driver)
	}
	if s.MaxConns < s.MinConns {
		p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", s.MaxConns, s.MinConns)
	}
	p.check(s.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(s.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
}

func (s ServerConfig) validate(p *problems) {
	if s.Port <= 0 || s.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", s.Port)
	}
	p.check(s.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(s.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
}

func (i ImportConfig) validate(p *problems) {
	p.check(i.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(i.TickInterval > 0, "IMPORT_TICK_INTERVAL must be positive")
	p.check(i.FailEvery >= 0, "IMPORT_FAIL_EVERY must be non-negative")
	p.check(i.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(i.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(i.Retention > 0, "IMPORT_RETENTION must be positive")
}

func (r RosterConfig) validate(p *problems) {
	p.check(r.LoadDelay >= 0, "ROSTER_LOAD_DELAY must be non-negative")
	p.check(r.PanelTTL > 0, "BULK_PANEL_TTL must be positive")
}

func (r RateLimitConfig) validate(p *problems) {
	if !r.Enabled {
		return
	}
	p.check(r.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	p.check(r.ImportLimit > 0, "RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
}

func (s SecurityConfig) validate(p *problems) {
	p.check(!s.RequireAPIKey || len(s.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
}

func (l LoggingConfig) validate(p *problems) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	url := ""
	if c.Storage.URL != "" {
		url = "[MASKED]"
	}
	return fmt.Sprintf("Config{Server: {Addr: %q}, Storage: {Driver: %q, URL: %q, MaxConns: %d}, "+
		"Import: {MaxFileSize: %d, TickInterval: %s, FailEvery: %d, MaxConcurrent: %d}, "+
		"Roster: {SeedFile: %q, LoadDelay: %s, PanelTTL: %s}, Rate: {Enabled: %v, RequestsPerMinute: %d, ImportLimit: %d}, "+
		"Security: {RequireAPIKey: %v, APIKeys: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(),
		c.Storage.Driver, url, c.Storage.MaxConns,
		c.Import.MaxFileSize, c.Import.TickInterval, c.Import.FailEvery, c.Import.MaxConcurrent,
		c.Roster.SeedFile, c.Roster.LoadDelay, c.Roster.PanelTTL,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.ImportLimit,
		c.Security.RequireAPIKey, len(c.Security.APIKeys),
		c.Logging.Level, c.Logging.Format)
}
