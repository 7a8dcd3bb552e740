// Package config 提供统一的配置加载
// 优先级：默认值 < YAML文件 < 环境变量
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeAPIServer    ServiceType = "api-server"
	ServiceTypeImportWorker ServiceType = "import-worker"
)

// Config 全局配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Storage   StorageConfig   `yaml:"storage"`
	Parser    ParserConfig    `yaml:"parser"`
	Builder   BuilderConfig   `yaml:"builder"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name  string `yaml:"name" env:"APP_NAME" default:"pricetree"`
	Env   string `yaml:"env" env:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	Debug bool   `yaml:"debug" env:"APP_DEBUG" default:"false"`
}

// APIServerConfig API服务器配置
type APIServerConfig struct {
	Host    string        `yaml:"host" env:"API_HOST" default:"0.0.0.0"`
	Port    int           `yaml:"port" env:"API_PORT" default:"8080" validate:"min=1,max=65535"`
	Mode    string        `yaml:"mode" env:"API_MODE" default:"release" validate:"oneof=debug release test"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" default:"30s"`
}

// DatabaseConfig PostgreSQL配置
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST" default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	Database        string        `yaml:"database" env:"DB_NAME" default:"pricetree"`
	Username        string        `yaml:"username" env:"DB_USER" default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD" default:""`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// QueueConfig Redis队列配置
type QueueConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`
}

// StorageConfig MinIO对象存储配置
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" default:"minioadmin"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" default:"false"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME" default:"pricetree"`
	Region          string `yaml:"region" env:"MINIO_REGION" default:"us-east-1"`
}

// ParserConfig 解析器配置
type ParserConfig struct {
	SheetName     string `yaml:"sheet_name" env:"PARSER_SHEET_NAME" default:"Sheet1"`
	StrictMode    bool   `yaml:"strict_mode" env:"PARSER_STRICT_MODE" default:"false"`
	SkipEmptyRows bool   `yaml:"skip_empty_rows" env:"PARSER_SKIP_EMPTY_ROWS" default:"true"`
	MaxRows       int    `yaml:"max_rows" env:"PARSER_MAX_ROWS" default:"0" validate:"min=0"`
}

// BuilderConfig 树构建器配置
type BuilderConfig struct {
	DepthMarker string `yaml:"depth_marker" env:"BUILDER_DEPTH_MARKER" default:"*"`
}

// LoadConfig 从YAML文件加载配置，文件不存在时仅用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("设置默认配置失败: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
			// 文件不存在时继续，允许纯环境变量部署
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}

	// 环境变量覆盖文件配置
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}

	return cfg, nil
}

// LoadConfigForService 加载指定服务的配置
func LoadConfigForService(serviceType ServiceType, path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	switch serviceType {
	case ServiceTypeAPIServer, ServiceTypeImportWorker:
		// 两类服务共用全局配置
	default:
		return nil, fmt.Errorf("未知的服务类型: %s", serviceType)
	}

	return cfg, nil
}
