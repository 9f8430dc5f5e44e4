// Package config carga la configuración del servicio desde YAML + variables
// de entorno. Las variables de entorno pisan los valores del archivo.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// Provider define el timeout para llamadas salientes a los proveedores
	// (request token, token exchange, profile fetch).
	Provider struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"provider"`

	Session struct {
		Kind  string `yaml:"kind"` // memory | redis
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Auth struct {
		// URLs de redirección post-login. El saneado del destino es
		// responsabilidad de la capa de transporte.
		DefaultRedirect string `yaml:"default_redirect"`
		ErrorRedirect   string `yaml:"error_redirect"`
		NewUserRedirect string `yaml:"new_user_redirect"`

		// Clave de sesión donde se serializa el pipeline parcial.
		PartialPipelineKey string `yaml:"partial_pipeline_key"`

		// Orden de pasos del pipeline. Vacío usa el default.
		Pipeline []string `yaml:"pipeline"`
	} `yaml:"auth"`

	// Settings es la bolsa genérica de configuración por backend:
	// claves/secretos de cliente, scopes extra, whitelists, flags.
	// Equivale al colaborador getSetting(name, default).
	Settings map[string]any `yaml:"settings"`
}

// Load lee el archivo YAML (si existe) y aplica overrides de entorno.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.App.Env = envOr("APP_ENV", c.App.Env)
	c.App.LogLevel = envOr("LOG_LEVEL", c.App.LogLevel)
	c.Server.Addr = envOr("SERVER_ADDR", c.Server.Addr)
	c.Session.Kind = envOr("SESSION_KIND", c.Session.Kind)
	c.Session.Redis.Addr = envOr("REDIS_ADDR", c.Session.Redis.Addr)
	c.Session.Redis.Password = envOr("REDIS_PASSWORD", c.Session.Redis.Password)
	c.Storage.Driver = envOr("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = envOr("STORAGE_DSN", c.Storage.DSN)
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Provider.Timeout == "" {
		c.Provider.Timeout = "10s"
	}
	if c.Session.Kind == "" {
		c.Session.Kind = "memory"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "15m"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Auth.DefaultRedirect == "" {
		c.Auth.DefaultRedirect = "/"
	}
	if c.Auth.ErrorRedirect == "" {
		c.Auth.ErrorRedirect = "/login"
	}
	if c.Auth.PartialPipelineKey == "" {
		c.Auth.PartialPipelineKey = "partial_pipeline"
	}
}

// ProviderTimeout retorna el timeout parseado para llamadas a proveedores.
func (c *Config) ProviderTimeout() time.Duration {
	return parseDuration(c.Provider.Timeout, 10*time.Second)
}

// SessionTTL retorna el TTL parseado del estado de sesión.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 15*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// SettingsView expone lecturas tipadas sobre el bloque settings.
// Una variable de entorno con el mismo nombre pisa el valor del YAML.
type SettingsView struct {
	values map[string]any
}

// SettingsView construye la vista de settings del config.
func (c *Config) SettingsView() SettingsView {
	return SettingsView{values: c.Settings}
}

// NewSettings crea una vista desde un map plano. Útil en tests.
func NewSettings(values map[string]any) SettingsView {
	return SettingsView{values: values}
}

// Get retorna el setting como string, o def si no existe.
func (s SettingsView) Get(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	if v, ok := s.values[name]; ok {
		switch t := v.(type) {
		case string:
			return t
		case int:
			return strconv.Itoa(t)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return def
}

// Has indica si el setting existe (en entorno o en YAML).
func (s SettingsView) Has(name string) bool {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return true
	}
	_, ok := s.values[name]
	return ok
}

// GetList retorna el setting como lista de strings.
// Acepta listas YAML o strings separados por coma (estilo env).
func (s SettingsView) GetList(name string) []string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return splitCSV(v)
	}
	switch t := s.values[name].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if str, ok := e.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return t
	case string:
		return splitCSV(t)
	}
	return nil
}

// GetBool retorna el setting como bool, o def si no existe o no parsea.
func (s SettingsView) GetBool(name string, def bool) bool {
	raw := s.Get(name, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
