package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env       string
		Timezone  string
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN           string
		MigrateOnBoot bool `mapstructure:"migrate_on_boot"`
	} `mapstructure:"postgres"`

	Store struct {
		Driver      string // memory | postgres
		MaxAttempts int    `mapstructure:"max_attempts"`
		SeedFile    string `mapstructure:"seed_file"`
	} `mapstructure:"store"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Auth struct {
		TokenSecret     string        `mapstructure:"token_secret"`
		TokenTTL        time.Duration `mapstructure:"token_ttl"`
		FederatedSecret string        `mapstructure:"federated_secret"`
		FederatedIssuer string        `mapstructure:"federated_issuer"`
		ClientIdleTTL   time.Duration `mapstructure:"client_idle_ttl"`
	} `mapstructure:"auth"`

	Membership struct {
		Mode string // always_member | never_member | profile
	} `mapstructure:"membership"`

	Commit struct {
		Timeout time.Duration
	} `mapstructure:"commit"`

	Payments struct {
		BaseURL  string        `mapstructure:"base_url"`
		Secret   string        `mapstructure:"secret"`
		LinkTTL  time.Duration `mapstructure:"link_ttl"`
		Currency string
	} `mapstructure:"payments"`

	Kafka struct {
		Brokers []string
		Topic   string
	} `mapstructure:"kafka"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Export struct {
		Bucket         string
		Prefix         string
		Region         string
		Endpoint       string
		ForcePathStyle bool `mapstructure:"force_path_style"`
	} `mapstructure:"export"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Europe/Oslo")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("postgres.migrate_on_boot", true)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.max_attempts", 5)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.client_idle_ttl", 12*time.Hour)
	v.SetDefault("membership.mode", "always_member")
	v.SetDefault("commit.timeout", 10*time.Second)
	v.SetDefault("payments.base_url", "http://localhost:8080")
	v.SetDefault("payments.link_ttl", 15*time.Minute)
	v.SetDefault("payments.currency", "NOK")
	v.SetDefault("kafka.topic", "makerspace.usage")
	v.SetDefault("export.prefix", "exports/")
}

// Load читает .env (если есть), затем YAML, затем переменные APP_*.
// APP_CONFIG переопределяет путь к YAML.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	if p := os.Getenv("APP_CONFIG"); p != "" {
		path = p
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.validate()
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for store.driver=postgres")
		}
	default:
		return errors.New("store.driver must be memory or postgres")
	}
	if c.Auth.TokenSecret == "" {
		return errors.New("auth.token_secret is required")
	}
	return nil
}
