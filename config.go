package ipupdate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is everything a run needs, loaded once per invocation.
type Config struct {
	IPServiceURL string `json:"ipify_url" yaml:"ipify_url"`
	// IPSource selects how the public IP is found:
	// "" or "web" (IPServiceURL), "dns" or "dns:<server>", "interface:<name>", "static:<addr>".
	IPSource string `json:"ip_source,omitempty" yaml:"ip_source,omitempty"`

	CloudflareBaseURL string `json:"cloudflare_api_base_url" yaml:"cloudflare_api_base_url"`
	CloudflareEmail   string `json:"cloudflare_x_auth_email" yaml:"cloudflare_x_auth_email"`
	CloudflareAPIKey  string `json:"cloudflare_api_key" yaml:"cloudflare_api_key"`

	// Email notifications are disabled when SendGridAPIKey is empty.
	SendGridAPIKey string `json:"sendgrid_api_key" yaml:"sendgrid_api_key"`
	SendGridHost   string `json:"sendgrid_host,omitempty" yaml:"sendgrid_host,omitempty"`
	FromEmail      string `json:"from_email" yaml:"from_email"`
	ToEmail        string `json:"to_email" yaml:"to_email"`

	Domains []DomainConfig `json:"domain_settings" yaml:"domain_settings"`
}

// LoadConfig reads a configuration file.
// Files ending in .yaml or .yml are parsed as YAML; anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv builds a single-domain configuration from environment variables.
// A .env file in the working directory is loaded first if there is one.
func ConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	proxied, err := strconv.ParseBool(getEnv("PROXIED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROXIED: %w", err)
	}
	ttl, err := strconv.Atoi(getEnv("TTL", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid TTL: %w", err)
	}

	cfg := &Config{
		IPServiceURL:      getEnv("IPIFY_URL", ""),
		IPSource:          getEnv("IP_SOURCE", ""),
		CloudflareBaseURL: getEnv("CLOUDFLARE_API_BASE_URL", ""),
		CloudflareEmail:   os.Getenv("CLOUDFLARE_X_AUTH_EMAIL"),
		CloudflareAPIKey:  os.Getenv("CLOUDFLARE_API_KEY"),
		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridHost:      getEnv("SENDGRID_HOST", ""),
		FromEmail:         os.Getenv("FROM_EMAIL"),
		ToEmail:           os.Getenv("TO_EMAIL"),
		Domains: []DomainConfig{{
			ZoneID:     os.Getenv("CLOUDFLARE_ZONE_ID"),
			Name:       os.Getenv("DOMAIN_NAME"),
			RecordType: getEnv("RECORD_TYPE", "A"),
			Proxied:    proxied,
			TTL:        ttl,
		}},
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	return cfg, nil
}

func getEnv(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

func (c *Config) setDefaults() {
	if c.IPServiceURL == "" {
		c.IPServiceURL = DefaultIPServiceURL
	}
	if c.CloudflareBaseURL == "" {
		c.CloudflareBaseURL = DefaultCloudflareBaseURL
	}
	if c.SendGridHost == "" {
		c.SendGridHost = DefaultSendGridHost
	}
	for i := range c.Domains {
		if c.Domains[i].TTL == 0 {
			c.Domains[i].TTL = 1
		}
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.CloudflareEmail == "" {
		errs = append(errs, errors.New("cloudflare_x_auth_email cannot be empty"))
	}
	if c.CloudflareAPIKey == "" {
		errs = append(errs, errors.New("cloudflare_api_key cannot be empty"))
	}
	if c.SendGridAPIKey != "" {
		if c.FromEmail == "" {
			errs = append(errs, errors.New("from_email cannot be empty when sendgrid_api_key is set"))
		}
		if c.ToEmail == "" {
			errs = append(errs, errors.New("to_email cannot be empty when sendgrid_api_key is set"))
		}
	}
	if _, err := c.Resolver(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Domains) == 0 {
		errs = append(errs, errors.New("domain_settings must list at least one domain"))
	}
	for i, d := range c.Domains {
		if d.ZoneID == "" {
			errs = append(errs, fmt.Errorf("domain %d: cloudflare_zone_id cannot be empty", i))
		}
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("domain %d: domain_name cannot be empty", i))
		} else if !strings.Contains(d.Name, ".") {
			errs = append(errs, fmt.Errorf("domain %d: domain_name %q must have at least one dot", i, d.Name))
		}
		if t := d.Type(); t != "A" && t != "AAAA" {
			errs = append(errs, fmt.Errorf("domain %d: record_type must be A or AAAA; got %q", i, d.RecordType))
		}
		if d.TTL != 1 && (d.TTL < 30 || d.TTL > 86400) {
			errs = append(errs, fmt.Errorf("domain %d: ttl must be 1 (automatic) or between 30 and 86400; got %d", i, d.TTL))
		}
	}
	return errors.Join(errs...)
}

// Resolver builds the resolver selected by IPSource.
func (c *Config) Resolver() (Resolver, error) {
	kind, arg, _ := strings.Cut(c.IPSource, ":")
	switch kind {
	case "", "web":
		u := c.IPServiceURL
		if u == "" {
			u = DefaultIPServiceURL
		}
		return WebResolver(u)
	case "dns":
		return DNSResolver(arg), nil
	case "interface":
		if arg == "" {
			return nil, errors.New("ip_source interface: needs an interface name")
		}
		return InterfaceResolver(arg), nil
	case "static":
		return FromString(arg)
	}
	return nil, fmt.Errorf("unknown ip_source %q", c.IPSource)
}

// Options converts the configuration into options for New.
func (c *Config) Options() ([]clientOption, error) {
	resolver, err := c.Resolver()
	if err != nil {
		return nil, err
	}
	opts := []clientOption{
		UsingCloudflare(c.CloudflareEmail, c.CloudflareAPIKey, c.CloudflareBaseURL),
		UsingResolver(resolver),
	}
	if c.SendGridAPIKey != "" {
		opts = append(opts, UsingSendGrid(SendGridConfig{
			APIKey: c.SendGridAPIKey,
			Host:   c.SendGridHost,
			From:   c.FromEmail,
			To:     c.ToEmail,
		}))
	}
	return opts, nil
}
