package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	RouteConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetTokenStorePath() string
}

// APIConfig describes how to reach the campsite backend.
type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

// RouteConfig holds the client side navigation entry points.
type RouteConfig interface {
	GetLoginPath() string
	GetDefaultPath() string
}

type mainConfig struct {
	EnvVars `yaml:"app"`
	API     `yaml:"api"`
	Routes  `yaml:"routes"`
}
