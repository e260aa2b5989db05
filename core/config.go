package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env     string `mapstructure:"env"`
		Build   string `mapstructure:"build"`
		AppName string `mapstructure:"appName"`
		Debug   bool   `mapstructure:"debug"`
		// TestMode is set when ENV=TEST
		TestMode bool   `mapstructure:"testMode"`
		WorkDir  string `mapstructure:"-"`

		FrontendBaseURL    string `mapstructure:"frontendBaseURL"`
		DefaultFromName    string `mapstructure:"defaultFromName"`
		DefaultFromAddress string `mapstructure:"defaultFromAddress"`
		SendgridApiKey     string `mapstructure:"sendgridApiKey"`
		RollbarToken       string `mapstructure:"rollbarToken"`

		Server    ServerConfig    `mapstructure:"server"`
		Database  DatabaseConfig  `mapstructure:"database"`
		Scheduler SchedulerConfig `mapstructure:"scheduler"`
	}

	ServerConfig struct {
		Host            string        `mapstructure:"host"`
		Port            string        `mapstructure:"port"`
		DebugHost       string        `mapstructure:"debugHost"`
		ReadTimeout     time.Duration `mapstructure:"readTimeout"`
		WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
		DisableReqLogs  bool          `mapstructure:"disableReqLogs"`
	}

	DatabaseConfig struct {
		// Storage selects the project repository: "postgres" or "memory".
		Storage       string `mapstructure:"storage"`
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	// SchedulerConfig holds the defaults offered to project authors.
	SchedulerConfig struct {
		EvaluationDays      int `mapstructure:"evaluationDays"`
		BreatheDays         int `mapstructure:"breatheDays"`
		PresetPhaseDuration int `mapstructure:"presetPhaseDuration"`
		NumberOfPhases      int `mapstructure:"numberOfPhases"`
		PhaseDurationDays   int `mapstructure:"phaseDurationDays"`
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddress}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Cadence")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Cadence")
	v.SetDefault("defaultFromAddress", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.storage", "postgres")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "cadence")
	v.SetDefault("database.user", "cadence")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	// same defaults as the project creation form
	v.SetDefault("scheduler.evaluationDays", 1)
	v.SetDefault("scheduler.breatheDays", 0)
	v.SetDefault("scheduler.presetPhaseDuration", 7)
	v.SetDefault("scheduler.numberOfPhases", 3)
	v.SetDefault("scheduler.phaseDurationDays", 7)
}

// NewConfig loads the configuration of the current ENV (DEV by default; TEST, QA, PROD).
// Values come from defaults, then config/.env.<env> if it exists, then the environment.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	conf.WorkDir = workDir
	return conf, nil
}
