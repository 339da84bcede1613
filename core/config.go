package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration.
var Conf = NewConfig()

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Debug                     bool
		TestMode                  bool
		AppName                   string
		Build                     string
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration
		defaultFromEmail          string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
		Grading  GradingConfig
		Jobs     JobsConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
		AuthRateLimit             int // requests per minute per IP on auth endpoints
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		URL      string // empty disables redis; an in-process cache is used instead
		CacheTTL time.Duration
	}

	StorageConfig struct {
		OSSEndpoint    string
		OSSAccessKey   string
		OSSSecretKey   string
		OSSBucket      string
		PublicBaseURL  string
		ProfilePicSize int
	}

	GradingConfig struct {
		WrittenWorkPercent         float64
		PerformanceTaskPercent     float64
		QuarterlyAssessmentPercent float64
	}

	JobsConfig struct {
		AuditRetention          time.Duration
		AuditPurgeSchedule      string
		RecordsReminderSchedule string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (d DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%s", d.Host, d.Port)
}

// NewConfig reads the configuration from the environment (optionally loaded from `config/.env.<env>`).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Gradebook")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "s3k-9w%e)nb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("serverAllowedOrigins", "http://localhost:3000")
	v.SetDefault("serverAuthRateLimit", 20)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "gradebook")
	v.SetDefault("dbUser", "gradebook")
	v.SetDefault("dbPassword", "gradebook")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("redisURL", "")
	v.SetDefault("redisCacheTTL", 10*time.Minute)

	v.SetDefault("ossEndpoint", "")
	v.SetDefault("ossAccessKey", "")
	v.SetDefault("ossSecretKey", "")
	v.SetDefault("ossBucket", "")
	v.SetDefault("storagePublicBaseURL", "")
	v.SetDefault("profilePicSize", 256)

	v.SetDefault("writtenWorkPercent", 30.0)
	v.SetDefault("performanceTaskPercent", 50.0)
	v.SetDefault("quarterlyAssessmentPercent", 20.0)

	v.SetDefault("auditRetention", 180*24*time.Hour)
	v.SetDefault("auditPurgeSchedule", "15 2 * * *")
	v.SetDefault("recordsReminderSchedule", "0 7 * * 1")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
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
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		WorkDir:                   workDir,
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			AllowedOrigins:            splitList(v.GetString("serverAllowedOrigins")),
			AuthRateLimit:             v.GetInt("serverAuthRateLimit"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("redisURL"),
			CacheTTL: v.GetDuration("redisCacheTTL"),
		},
		Storage: StorageConfig{
			OSSEndpoint:    v.GetString("ossEndpoint"),
			OSSAccessKey:   v.GetString("ossAccessKey"),
			OSSSecretKey:   v.GetString("ossSecretKey"),
			OSSBucket:      v.GetString("ossBucket"),
			PublicBaseURL:  strings.TrimRight(v.GetString("storagePublicBaseURL"), "/"),
			ProfilePicSize: v.GetInt("profilePicSize"),
		},
		Grading: GradingConfig{
			WrittenWorkPercent:         v.GetFloat64("writtenWorkPercent"),
			PerformanceTaskPercent:     v.GetFloat64("performanceTaskPercent"),
			QuarterlyAssessmentPercent: v.GetFloat64("quarterlyAssessmentPercent"),
		},
		Jobs: JobsConfig{
			AuditRetention:          v.GetDuration("auditRetention"),
			AuditPurgeSchedule:      v.GetString("auditPurgeSchedule"),
			RecordsReminderSchedule: v.GetString("recordsReminderSchedule"),
		},
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
