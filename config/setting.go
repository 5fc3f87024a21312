package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serverConfig struct {
	Port        int    `koanf:"port" validate:"required"`
	Mode        string `koanf:"mode" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"required"`
	BodyLimit   int    `koanf:"body_limit" validate:"required"`
	AppName     string `koanf:"app_name" validate:"required"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleSetting  Module = "setting"
	ModuleServer   Module = "server"
	ModuleDatabase Module = "database"
	ModuleStorage  Module = "storage"
	ModuleBooks    Module = "books"
	ModuleChapters Module = "chapters"
	ModuleJobs     Module = "jobs"
	ModuleAudio    Module = "audio"
	ModuleChunking Module = "chunking"
	ModuleFormat   Module = "format"
	ModuleTTS      Module = "tts"
	ModuleHealth   Module = "health"
)

type databaseConfig struct {
	Host         string   `koanf:"host" validate:"required"`
	Port         int      `koanf:"port" validate:"required"`
	User         string   `koanf:"user" validate:"required"`
	Password     string   `koanf:"password"`
	Name         string   `koanf:"name" validate:"required"`
	MaxIdleConns int      `koanf:"max_idle_conns" validate:"required"`
	MaxOpenConns int      `koanf:"max_open_conns" validate:"required"`
	MaxLifetime  int      `koanf:"max_lifetime" validate:"required"`
	ReplicaDSNs  []string `koanf:"replica_dsns"`
}

type redisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Queue    string `koanf:"queue"`
}

type llmConfig struct {
	BaseURL     string  `koanf:"base_url" validate:"required"`
	Key         string  `koanf:"key"`
	Model       string  `koanf:"model" validate:"required"`
	MaxTokens   int     `koanf:"max_tokens" validate:"required"`
	Temperature float64 `koanf:"temperature"`
}

type ttsConfig struct {
	BaseURL      string  `koanf:"base_url" validate:"required"`
	TimeoutSecs  int     `koanf:"timeout_secs" validate:"required"`
	MaxChunkSize int     `koanf:"max_chunk_size" validate:"required"`
	Exaggeration float64 `koanf:"exaggeration"`
	CfgWeight    float64 `koanf:"cfg_weight"`
	Temperature  float64 `koanf:"temperature"`
	Voice        string  `koanf:"voice"`
	Language     string  `koanf:"language"`
}

type chunkingConfig struct {
	LLMMaxChars int `koanf:"llm_max_chars" validate:"required"`
	LLMOverlap  int `koanf:"llm_overlap"`
}

type jobsConfig struct {
	Workers        int `koanf:"workers" validate:"required"`
	MaxRetries     int `koanf:"max_retries" validate:"required"`
	BackoffBase    int `koanf:"backoff_base" validate:"required"`
	BackoffMaxSecs int `koanf:"backoff_max_secs" validate:"required"`
}

type corsConfig struct {
	AllowOrigins []string `koanf:"allow_origins" validate:"required"`
	AllowMethods []string `koanf:"allow_methods" validate:"required"`
	AllowHeaders []string `koanf:"allow_headers" validate:"required"`
}

type s3Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Bucket    string `koanf:"bucket"`
}

type storageConfig struct {
	UploadPath    string `koanf:"upload_path" validate:"required"`
	AudioPath     string `koanf:"audio_path" validate:"required"`
	MaxUploadSize int64  `koanf:"max_upload_size" validate:"required"`
}

type config struct {
	Server   serverConfig   `koanf:"server"`
	Database databaseConfig `koanf:"database"`
	Redis    redisConfig    `koanf:"redis"`
	LLM      llmConfig      `koanf:"llm"`
	TTS      ttsConfig      `koanf:"tts"`
	Chunking chunkingConfig `koanf:"chunking"`
	Jobs     jobsConfig     `koanf:"jobs"`
	Storage  storageConfig  `koanf:"storage"`
	S3       s3Config       `koanf:"s3"`
	Cors     corsConfig     `koanf:"cors"`
	LogLevel logLevel       `koanf:"log_level"`
	Dns      string         `koanf:"dns"`
}

// envKey maps APP_SERVER__PORT to server.port. A double underscore
// separates config sections so snake_case key names keep their single
// underscores (APP_STORAGE__MAX_UPLOAD_SIZE -> storage.max_upload_size).
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "APP_"))
	return strings.ReplaceAll(s, "__", ".")
}

func buildMySQLDSN(cfg databaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

var defaultConfig = config{
	Server: serverConfig{
		Port:        8000,
		Mode:        "release",
		Concurrency: 256,
		BodyLimit:   52428800, // keep in sync with storage.max_upload_size
		AppName:     "bookwhisperer",
	},
	Database: databaseConfig{
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "bookwhisperer",
		Password:     "",
		Name:         "bookwhisperer",
		MaxIdleConns: 4,
		MaxOpenConns: 32,
		MaxLifetime:  30,
	},
	Redis: redisConfig{
		Addr:  "",
		Queue: "bookwhisperer:jobs",
	},
	LLM: llmConfig{
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama2",
		MaxTokens:   4000,
		Temperature: 0.3,
	},
	TTS: ttsConfig{
		BaseURL:      "http://localhost:4123",
		TimeoutSecs:  300,
		MaxChunkSize: 5000,
		Exaggeration: 0.8,
		CfgWeight:    0.3,
		Temperature:  0.9,
	},
	Chunking: chunkingConfig{
		LLMMaxChars: 3800,
		LLMOverlap:  200,
	},
	Jobs: jobsConfig{
		Workers:        4,
		MaxRetries:     3,
		BackoffBase:    2,
		BackoffMaxSecs: 600,
	},
	Storage: storageConfig{
		UploadPath:    "storage/uploads",
		AudioPath:     "storage/audio",
		MaxUploadSize: 52428800,
	},
	S3: s3Config{
		Endpoint:  "",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		UseSSL:    false,
		Bucket:    "",
	},
	Cors: corsConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	},
	LogLevel: Info,
}

var (
	Cfg  = defaultConfig
	once sync.Once
)

// Init loads configuration from the given yaml file plus APP_-prefixed
// environment variables, validates it and populates Cfg. Only the first
// call loads; later calls are no-ops.
func Init(path string) error {
	var initErr error

	once.Do(func() {
		k := koanf.New(".")

		validate := validator.New()
		// defaults
		Cfg = defaultConfig

		// file
		if e := k.Load(file.Provider(path), yaml.Parser()); e != nil && !os.IsNotExist(e) {
			initErr = e
			return
		}

		// env APP_SERVER__PORT
		if e := k.Load(env.Provider("APP_", ".", envKey), nil); e != nil {
			initErr = e
			return
		}

		// bind
		if e := k.Unmarshal("", &Cfg); e != nil {
			log.Errorf("failed to unmarshal config: %v", e)
			initErr = e
			return
		}

		if Cfg.Dns == "" {
			Cfg.Dns = buildMySQLDSN(Cfg.Database)
		}

		// validate config
		if err := validate.Struct(Cfg); err != nil {
			if errs, ok := err.(validator.ValidationErrors); ok {
				var sb strings.Builder
				sb.WriteString(fmt.Sprintf("%v Config validation failed:\n", ModuleSetting))

				for _, e := range errs {
					sb.WriteString(
						fmt.Sprintf("  - %s: failed '%s' (value: %v)\n", e.Field(), e.Tag(), e.Value()),
					)
				}

				log.Error(sb.String())
			} else {
				log.Errorf("config validation failed: %v", err)
			}
			initErr = err
		}
	})

	return initErr
}

func init() {
	_ = Init("config.yaml")
}
