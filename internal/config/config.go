// Package config loads the server's YAML configuration, following the
// usual yaml field-tag style.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UserTokenPolicy enumerates the identity token kinds the server accepts
// during ActivateSession.
type UserTokenPolicy string

const (
	TokenAnonymous UserTokenPolicy = "Anonymous"
	TokenUserName  UserTokenPolicy = "UserName"
	TokenX509      UserTokenPolicy = "X509"
)

// UserTokenConfig is one entry of the `user_tokens` config list.
type UserTokenConfig struct {
	ID     string           `yaml:"id"`
	Policy UserTokenPolicy  `yaml:"policy"`
	Users  []UserCredential `yaml:"users"`
}

// UserCredential is a single UserName/password pair accepted under a
// UserTokenConfig whose Policy is TokenUserName. X509 policies ignore
// Users and authenticate by certificate instead.
type UserCredential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SecurityMode mirrors the three OPC UA message security modes (OPC UA Part 4).
type SecurityMode string

const (
	ModeNone           SecurityMode = "None"
	ModeSign           SecurityMode = "Sign"
	ModeSignAndEncrypt SecurityMode = "SignAndEncrypt"
)

// EndpointConfig is one advertised GetEndpoints entry.
type EndpointConfig struct {
	SecurityPolicyURI   string       `yaml:"security_policy_uri"`
	SecurityMode        SecurityMode `yaml:"security_mode"`
	TransportProfileURI string       `yaml:"transport_profile_uri"`
}

// Config is the complete set of keys this server recognises, unmarshaled
// from YAML the way gateway.Config is.
type Config struct {
	TCPHost string `yaml:"tcp_host"`
	TCPPort int    `yaml:"tcp_port"`

	ApplicationURI  string `yaml:"application_uri"`
	ProductURI      string `yaml:"product_uri"`
	ApplicationName string `yaml:"application_name"`

	ServerCertificatePath string `yaml:"server_certificate_path"`
	ServerPrivateKeyPath  string `yaml:"server_private_key_path"`
	PKIDir                string `yaml:"pki_dir"`

	MaxSessionCount                  int `yaml:"max_session_count"`
	MaxSubscriptionsPerSession       int `yaml:"max_subscriptions_per_session"`
	MaxMonitoredItemsPerSubscription int `yaml:"max_monitored_items_per_subscription"`

	MinPublishingIntervalMS  int64 `yaml:"min_publishing_interval_ms"`
	MinSamplingIntervalMS    int64 `yaml:"min_sampling_interval_ms"`
	DefaultSessionTimeoutMS  int64 `yaml:"default_session_timeout_ms"`
	DefaultChannelLifetimeMS int64 `yaml:"default_secure_channel_lifetime_ms"`

	MaxMessageSize int `yaml:"max_message_size"`
	MaxChunkCount  int `yaml:"max_chunk_count"`

	UserTokens []UserTokenConfig `yaml:"user_tokens"`
	Endpoints  []EndpointConfig  `yaml:"endpoints"`

	LogLevel      string `yaml:"log_level"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// Default returns the conservative baseline this server starts from
// when no file is supplied; Load layers a YAML file over these.
func Default() *Config {
	return &Config{
		TCPHost:                          "0.0.0.0",
		TCPPort:                          4840,
		ApplicationURI:                   "urn:opcuad:server",
		ProductURI:                       "urn:opcuad:product",
		ApplicationName:                  "opcuad",
		PKIDir:                           "pki",
		MaxSessionCount:                  100,
		MaxSubscriptionsPerSession:       50,
		MaxMonitoredItemsPerSubscription: 1000,
		MinPublishingIntervalMS:          100,
		MinSamplingIntervalMS:            50,
		DefaultSessionTimeoutMS:          1200_000,
		DefaultChannelLifetimeMS:         3600_000,
		MaxMessageSize:                   4 * 1024 * 1024,
		MaxChunkCount:                    512,
		UserTokens: []UserTokenConfig{
			{ID: "anonymous", Policy: TokenAnonymous},
		},
		Endpoints: []EndpointConfig{
			{SecurityPolicyURI: "http://opcfoundation.org/UA/SecurityPolicy#None", SecurityMode: ModeNone,
				TransportProfileURI: "http://opcfoundation.org/UA-Profile/Transport/uatcp-uasc-uabinary"},
		},
		LogLevel:      "info",
		EnableMetrics: true,
	}
}

// Load reads and unmarshals a YAML config file over the defaults, so a
// partial file only needs to specify the keys it wants to override.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
