package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env-default:"local"`
	AdminEmail string `yaml:"admin_email" env:"ADMIN_EMAIL"`
	BaseURL    string `yaml:"base_url" env-default:"http://localhost:8080"`
	Site       `yaml:"site"`
	Session    `yaml:"session"`
	LLM        `yaml:"llm"`
	RabbitMQ   `yaml:"rabbitmq"`
	Postgres   `yaml:"postgres"`
	SMTP       `yaml:"smtp"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disabled"`
}

type Session struct {
	Secret     string        `yaml:"secret" env:"SESSION_SECRET" env-required:"true"`
	TTL        time.Duration `yaml:"ttl" env-default:"8760h"`
	CookieName string        `yaml:"cookie_name" env-default:"session"`
}

// Site holds the shared site-password gate. The admin console may
// override the password at runtime via the site_settings table.
type Site struct {
	Password string `yaml:"password" env:"SITE_PASSWORD" env-required:"true"`
}

type LLM struct {
	BaseURL string        `yaml:"base_url" env-default:"https://api.openai.com/v1"`
	APIKey  string        `yaml:"api_key" env:"LLM_API_KEY"`
	Model   string        `yaml:"model" env-default:"gpt-4o-mini"`
	Timeout time.Duration `yaml:"timeout" env-default:"60s"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env-required:"true"`
	QueueName string `yaml:"queue_name" env-required:"true"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist" + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}
