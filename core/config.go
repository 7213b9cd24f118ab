package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Build    string
		AppName  string
		Debug    bool
		TestMode bool
		WorkDir  string

		SecretKey                 string
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration

		DefaultFromEmailName    string
		DefaultFromEmailAddress string
		SendgridApiKey          string
		RollbarToken            string

		Server   ServerConfig
		Database DatabaseConfig
		Mirror   MirrorConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		BodyLimit                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
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

	// MirrorConfig points at the remote profile/project replica (a Supabase PostgREST endpoint).
	MirrorConfig struct {
		Enabled      bool
		BaseURL      string
		APIKey       string
		ProfileTable string
		ProjectTable string
		Timeout      time.Duration
	}

	StorageConfig struct {
		Driver            string // local | s3
		LocalDir          string
		PublicBaseURL     string
		S3Bucket          string
		S3Region          string
		S3Endpoint        string
		S3Prefix          string
		MaxUploadSize     int64
		ImageMaxWidth     int
		ScreenshotsPrefix string
		AvatarsPrefix     string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromEmailName, Address: c.DefaultFromEmailAddress}
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and
// the environment (prefixed with the upper-cased env name, e.g. PROD_DATABASE_HOST).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Wildcats iHub")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "n8x!2c@9v#4b$7m%1q^6w&3e*5r(0t)yu_i+o-p=a[s]d{f}g")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("defaultFromEmailName", "Wildcats iHub Team")
	v.SetDefault("defaultFromEmailAddress", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.bodyLimit", "12M")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ihub")
	v.SetDefault("database.user", "ihub")
	v.SetDefault("database.password", "ihub")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.baseURL", "")
	v.SetDefault("mirror.apiKey", "")
	v.SetDefault("mirror.profileTable", "wildcatsIHUB_app_userprofile")
	v.SetDefault("mirror.projectTable", "projects_project")
	v.SetDefault("mirror.timeout", 10*time.Second)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", filepath.Join(wd, "media"))
	v.SetDefault("storage.publicBaseURL", "/media")
	v.SetDefault("storage.s3Bucket", "")
	v.SetDefault("storage.s3Region", "us-east-1")
	v.SetDefault("storage.s3Endpoint", "")
	v.SetDefault("storage.s3Prefix", "")
	v.SetDefault("storage.maxUploadSize", int64(5<<20))
	v.SetDefault("storage.imageMaxWidth", 1600)
	v.SetDefault("storage.screenshotsPrefix", "project_screenshots")
	v.SetDefault("storage.avatarsPrefix", "avatars")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  wd,

		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		DefaultFromEmailName:    v.GetString("defaultFromEmailName"),
		DefaultFromEmailAddress: v.GetString("defaultFromEmailAddress"),
		SendgridApiKey:          v.GetString("sendgridApiKey"),
		RollbarToken:            v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			BodyLimit:                 v.GetString("server.bodyLimit"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Mirror: MirrorConfig{
			Enabled:      v.GetBool("mirror.enabled"),
			BaseURL:      strings.TrimSuffix(v.GetString("mirror.baseURL"), "/"),
			APIKey:       v.GetString("mirror.apiKey"),
			ProfileTable: v.GetString("mirror.profileTable"),
			ProjectTable: v.GetString("mirror.projectTable"),
			Timeout:      v.GetDuration("mirror.timeout"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			LocalDir:          v.GetString("storage.localDir"),
			PublicBaseURL:     strings.TrimSuffix(v.GetString("storage.publicBaseURL"), "/"),
			S3Bucket:          v.GetString("storage.s3Bucket"),
			S3Region:          v.GetString("storage.s3Region"),
			S3Endpoint:        v.GetString("storage.s3Endpoint"),
			S3Prefix:          v.GetString("storage.s3Prefix"),
			MaxUploadSize:     v.GetInt64("storage.maxUploadSize"),
			ImageMaxWidth:     v.GetInt("storage.imageMaxWidth"),
			ScreenshotsPrefix: v.GetString("storage.screenshotsPrefix"),
			AvatarsPrefix:     v.GetString("storage.avatarsPrefix"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests; it never touches the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Wildcats iHub",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		DefaultFromEmailName:      "Wildcats iHub Team",
		DefaultFromEmailAddress:   "noreply@localhost",
		Server: ServerConfig{
			Host:                      ":8000",
			BodyLimit:                 "12M",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Storage: StorageConfig{
			MaxUploadSize:     5 << 20,
			ImageMaxWidth:     1600,
			ScreenshotsPrefix: "project_screenshots",
			AvatarsPrefix:     "avatars",
		},
	}
}

// Getwd finds the module root (the directory holding go.mod).
// go-test changes the working directory to the test package being run, so a plain os.Getwd is not enough.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s debug=%t", c.AppName, c.Build, c.Env, c.Debug)
}
