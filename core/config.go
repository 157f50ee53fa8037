package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	TwilioConfig struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}

	AttendanceConfig struct {
		Cooldown           time.Duration
		Timezone           *time.Location
		DailyResetSchedule string
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		WorkDir         string
		SecretKey       string
		FrontendBaseURL string
		Storage         string // postgres | memory
		SendgridApiKey  string
		RollbarToken    string

		Server     ServerConfig
		Database   DatabaseConfig
		Twilio     TwilioConfig
		Attendance AttendanceConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "KinderHub")
	v.SetDefault("secretKey", "k1nd3r-(h)ub_9x@&2!fzq+l0p$e7wv^s*3m)8ct#r6dnoy")
	v.SetDefault("defaultFromEmail", "KinderHub <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("storage", "postgres")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "kinderhub")
	v.SetDefault("database.user", "kinderhub")
	v.SetDefault("database.password", "kinderhub")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("twilio.accountSid", "")
	v.SetDefault("twilio.authToken", "")
	v.SetDefault("twilio.fromNumber", "")

	v.SetDefault("attendance.cooldown", time.Second)
	v.SetDefault("attendance.timezone", "UTC")
	v.SetDefault("attendance.dailyResetSchedule", "")
}

// NewConfig loads the configuration for the current ENV.
// Values come from defaults, then `config/.env.<env>` (if it exists), then the environment.
// Environment keys are prefixed with the ENV name, eg. PROD_DATABASE_HOST or PROD_SECRETKEY.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("storage", "memory")
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	tz, err := time.LoadLocation(v.GetString("attendance.timezone"))
	if err != nil {
		log.Print(fmt.Errorf("config: invalid attendance.timezone %q, using UTC: %v", v.GetString("attendance.timezone"), err))
		tz = time.UTC
	}

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		WorkDir:         workDir,
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		Storage:         v.GetString("storage"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Twilio: TwilioConfig{
			AccountSID: v.GetString("twilio.accountSid"),
			AuthToken:  v.GetString("twilio.authToken"),
			FromNumber: v.GetString("twilio.fromNumber"),
		},
		Attendance: AttendanceConfig{
			Cooldown:           v.GetDuration("attendance.cooldown"),
			Timezone:           tz,
			DailyResetSchedule: v.GetString("attendance.dailyResetSchedule"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests; it never touches the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		AppName:         "KinderHub",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		Storage:         "memory",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Attendance: AttendanceConfig{
			Cooldown: time.Second,
			Timezone: time.UTC,
		},
		defaultFromEmail: "noreply@localhost",
	}
}
