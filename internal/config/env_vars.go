package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type EnvVars struct {
	Port           string `yaml:"port" env:"PORT" env-default:"8080"`
	AppName        string `yaml:"app_name" env:"APP_NAME" env-default:"Happy Camper"`
	Env            string `yaml:"env" env:"ENV" env-default:"DEV"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	TokenStorePath string `yaml:"token_store_path" env:"TOKEN_STORE_PATH"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return valueOr(e.AppName, "Happy Camper")
}

func (e EnvVars) GetEnv() string {
	return valueOr(e.Env, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return valueOr(e.LogLevel, "info")
}

// GetTokenStorePath is the SQLite file holding the credential pair.
// Empty means credentials only live for the lifetime of the process.
func (e EnvVars) GetTokenStorePath() string {
	return e.TokenStorePath
}

type API struct {
	BaseURL string        `yaml:"base_url" env:"API_URL" env-default:"http://localhost:8000"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"10s"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(valueOr(a.BaseURL, "http://localhost:8000"), "/")
}

func (a API) GetAPITimeout() time.Duration {
	if a.Timeout <= 0 {
		return 10 * time.Second
	}
	return a.Timeout
}

type Routes struct {
	LoginPath   string `yaml:"login_path" env:"LOGIN_PATH" env-default:"/login"`
	DefaultPath string `yaml:"default_path" env:"DEFAULT_PATH" env-default:"/"`
}

var _ RouteConfig = Routes{}

func (r Routes) GetLoginPath() string {
	return valueOr(r.LoginPath, "/login")
}

func (r Routes) GetDefaultPath() string {
	return valueOr(r.DefaultPath, "/")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func valueOr(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
