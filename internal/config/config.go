package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/cowin-alert-bot/internal/cadence"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

type Config struct {
	App struct {
		Env       string
		Timezone  string
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"app"`

	Telegram struct {
		Token         string
		AdminChatID   int64 `mapstructure:"admin_chat_id"`
		UpdateTimeout int   `mapstructure:"update_timeout"` // секунды long polling
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Cowin struct {
		BaseURL        string        `mapstructure:"base_url"`
		AcceptLanguage string        `mapstructure:"accept_language"`
		UserAgent      string        `mapstructure:"user_agent"`
		Timeout        time.Duration `mapstructure:"timeout"`
	} `mapstructure:"cowin"`

	Poller struct {
		Pacing        time.Duration   `mapstructure:"pacing"`
		FavorFastBand bool            `mapstructure:"favor_fast_band"`
		Cadences      []CadenceConfig `mapstructure:"cadences"`
	} `mapstructure:"poller"`

	Alerts struct {
		MaxMessageLen int `mapstructure:"max_message_len"`
	} `mapstructure:"alerts"`
}

type CadenceConfig struct {
	Name               string        `mapstructure:"name"`
	Bands              []string      `mapstructure:"bands"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MinGap             time.Duration `mapstructure:"min_gap"`
	BackoffOnRateLimit time.Duration `mapstructure:"backoff_on_rate_limit"`
	BackoffOnError     time.Duration `mapstructure:"backoff_on_error"`
}

// Load читает YAML, а поверх него .env и переменные APP_* (APP_POSTGRES_DSN и т.п.).
// Пустой path значит "только дефолты и окружение".
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Asia/Kolkata")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.update_timeout", 60)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("cowin.base_url", "https://cdn-api.co-vin.in")
	v.SetDefault("cowin.accept_language", "en_US")
	v.SetDefault("cowin.user_agent", "")
	v.SetDefault("cowin.timeout", 15*time.Second)
	// провайдер терпит около 100 запросов за 5 минут с одного клиента
	v.SetDefault("poller.pacing", 3*time.Second)
	v.SetDefault("poller.favor_fast_band", true)
	v.SetDefault("alerts.max_message_len", 4096)
}

// Location часовой пояс, в котором считается "сегодня" для запросов к провайдеру.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// Classes переводит секцию poller.cadences в классы. Без секции берутся дефолтные fast/slow.
func (c Config) Classes() ([]cadence.Class, error) {
	if len(c.Poller.Cadences) == 0 {
		return cadence.Defaults(), nil
	}
	out := make([]cadence.Class, 0, len(c.Poller.Cadences))
	for _, cc := range c.Poller.Cadences {
		bands := make([]availability.AgeBand, 0, len(cc.Bands))
		for _, s := range cc.Bands {
			b, err := availability.ParseAgeBand(s)
			if err != nil {
				return nil, fmt.Errorf("cadence %s: %w", cc.Name, err)
			}
			bands = append(bands, b)
		}
		out = append(out, cadence.Class{
			Name:               cc.Name,
			Bands:              bands,
			PollInterval:       cc.PollInterval,
			MinGap:             cc.MinGap,
			BackoffOnRateLimit: cc.BackoffOnRateLimit,
			BackoffOnError:     cc.BackoffOnError,
		})
	}
	return out, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}
	if f := c.App.LogFormat; f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("app.log_format: unknown format %q", f))
	}
	if c.Poller.Pacing < 0 {
		errs = append(errs, errors.New("poller.pacing must not be negative"))
	}
	if c.Cowin.Timeout <= 0 {
		errs = append(errs, errors.New("cowin.timeout must be positive"))
	}
	if classes, err := c.Classes(); err != nil {
		errs = append(errs, err)
	} else if err := cadence.ValidateSet(classes); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
