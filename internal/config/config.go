package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// TrackerAgentName is the default name advertised by the tracker agent.
	TrackerAgentName = "JiraTrackerAgent"
	// DefaultServerPort is where the A2A server listens when SERVER_PORT is unset.
	DefaultServerPort = 8080
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerPort  int
	ServerHost  string
	WebhookPort int

	// Agent configuration
	AgentName    string
	AgentVersion string
	AgentURL     string

	// Jira configuration
	JiraBaseURL  string
	JiraUsername string
	JiraAPIToken string

	// Authentication
	AuthType  string // "jwt" or "apikey"
	JWTSecret string
	APIKey    string

	// Tracker behaviour
	DefaultIssueLimit int
	PageSize          int
	MaxConcurrent     int
	ReleaseProject    string

	// Transport tuning
	RequestsPerSecond float64
	RetryMaxElapsed   time.Duration

	LogLevel string
}

var v = newViper()

func newViper() *viper.Viper {
	vp := viper.New()
	vp.SetConfigName("config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("$HOME/.jira-tracker")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	vp.SetDefault("server_port", DefaultServerPort)
	vp.SetDefault("server_host", "localhost")
	vp.SetDefault("webhook_port", DefaultServerPort+3)
	vp.SetDefault("agent_name", TrackerAgentName)
	vp.SetDefault("agent_version", "1.0.0")
	vp.SetDefault("agent_url", fmt.Sprintf("http://localhost:%d", DefaultServerPort))
	vp.SetDefault("jira_base_url", "https://issues.redhat.com")
	vp.SetDefault("jira_username", "")
	vp.SetDefault("jira_api_token", "")
	vp.SetDefault("auth_type", "apikey")
	vp.SetDefault("jwt_secret", "")
	vp.SetDefault("api_key", "")
	vp.SetDefault("tracker_default_issue_limit", 200)
	vp.SetDefault("tracker_page_size", 100)
	vp.SetDefault("tracker_max_concurrent", 10)
	vp.SetDefault("tracker_release_project", "JBEAP")
	vp.SetDefault("jira_requests_per_second", 10.0)
	vp.SetDefault("jira_retry_max_elapsed", "30s")
	vp.SetDefault("log_level", "info")
	return vp
}

// GetViper exposes the underlying viper instance so binaries can bind flags.
func GetViper() *viper.Viper {
	return v
}

// LoadFile reads the optional config file. A missing file is not an error.
func LoadFile() error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// NewConfig creates a new configuration from defaults, the config file and the environment
func NewConfig() *Config {
	return &Config{
		// Server configuration
		ServerPort:  v.GetInt("server_port"),
		ServerHost:  v.GetString("server_host"),
		WebhookPort: v.GetInt("webhook_port"),

		// Agent configuration
		AgentName:    v.GetString("agent_name"),
		AgentVersion: v.GetString("agent_version"),
		AgentURL:     v.GetString("agent_url"),

		// Jira configuration
		JiraBaseURL:  strings.TrimSuffix(v.GetString("jira_base_url"), "/"),
		JiraUsername: v.GetString("jira_username"),
		JiraAPIToken: v.GetString("jira_api_token"),

		// Authentication
		AuthType:  v.GetString("auth_type"),
		JWTSecret: v.GetString("jwt_secret"),
		APIKey:    v.GetString("api_key"),

		DefaultIssueLimit: v.GetInt("tracker_default_issue_limit"),
		PageSize:          v.GetInt("tracker_page_size"),
		MaxConcurrent:     v.GetInt("tracker_max_concurrent"),
		ReleaseProject:    v.GetString("tracker_release_project"),

		RequestsPerSecond: v.GetFloat64("jira_requests_per_second"),
		RetryMaxElapsed:   v.GetDuration("jira_retry_max_elapsed"),

		LogLevel: v.GetString("log_level"),
	}
}

// Validate reports configuration that makes the tracker unusable.
func (c *Config) Validate() error {
	if c.JiraBaseURL == "" {
		return errors.New("Jira URL not configured (set JIRA_BASE_URL)")
	}
	if c.JiraAPIToken == "" {
		return errors.New("Jira API token not configured (set JIRA_API_TOKEN)")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("invalid page size %d", c.PageSize)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid max concurrency %d", c.MaxConcurrent)
	}
	return nil
}
