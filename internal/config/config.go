package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AccessTokenTTLSeconds  int64  `yaml:"access_token_ttl_seconds"`
		RefreshTokenTTLSeconds int64  `yaml:"refresh_token_ttl_seconds"`
		MinPasswordLength      int    `yaml:"min_password_length"`
		BcryptCost             int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Mail struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"mail"`
	Frontend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"frontend"`
	Bootstrap struct {
		AdminUsername string `yaml:"admin_username"`
		AdminPassword string `yaml:"admin_password"`
		AdminEmail    string `yaml:"admin_email"`
	} `yaml:"bootstrap"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Auth.AccessTokenTTLSeconds == 0 {
		c.Auth.AccessTokenTTLSeconds = 3600
	}
	if c.Auth.RefreshTokenTTLSeconds == 0 {
		c.Auth.RefreshTokenTTLSeconds = 86400
	}
	if c.Auth.MinPasswordLength == 0 {
		c.Auth.MinPasswordLength = 6
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Frontend.BaseURL == "" {
		c.Frontend.BaseURL = "http://localhost:8000"
	}
}
