package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	NER        NERConfig        `mapstructure:"ner"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Export     ExportConfig     `mapstructure:"export"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite, mysql, postgres
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
	CallbackURL   string `mapstructure:"callback_url"`   // 回调URL
}

// NERConfig 实体标注模型服务配置
type NERConfig struct {
	Provider   string        `mapstructure:"provider"`    // 提供商：spacy
	BaseURL    string        `mapstructure:"base_url"`    // 模型服务基础URL
	Model      string        `mapstructure:"model"`       // 模型名称
	Timeout    time.Duration `mapstructure:"timeout"`     // 请求超时时间
	MaxRetries int           `mapstructure:"max_retries"` // 最大重试次数
	Disabled   []string      `mapstructure:"disabled"`    // 禁用的管线组件
}

// NormalizerConfig 文本规范化配置
type NormalizerConfig struct {
	Rules []NormalizerRule `mapstructure:"rules"` // 替换规则，为空时使用默认规则
}

// NormalizerRule 文本替换规则
type NormalizerRule struct {
	Old string `mapstructure:"old"` // 被替换的文本
	New string `mapstructure:"new"` // 替换后的文本
}

// ExportConfig 标注结果导出配置
type ExportConfig struct {
	ArtifactsEnable bool   `mapstructure:"artifacts_enable"` // 是否保存导出产物副本
	ArtifactsPath   string `mapstructure:"artifacts_path"`   // 导出产物存储路径
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	// 初始化viper
	v := viper.New()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// 处理配置项中的环境变量引用
	resConfig := processEnvironmentVariables(&config)

	return resConfig, nil
}

// processEnvironmentVariables 处理配置项中的${ENV_VAR}形式的环境变量引用
func processEnvironmentVariables(cfg *Config) *Config {
	// 处理MinIO访问密钥
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)

	// 处理Redis密码
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnv(cfg.Queue.RedisPassword)

	return cfg
}

// expandEnv 如果值是${ENV_VAR}形式，替换为环境变量的值
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "letters")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/letters.db")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400) // 24小时

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60) // 60秒

	// 模型服务默认配置
	v.SetDefault("ner.provider", "spacy")
	v.SetDefault("ner.base_url", "http://localhost:8000/api/nlp")
	v.SetDefault("ner.model", "en_core_web_sm")
	v.SetDefault("ner.timeout", "30s")
	v.SetDefault("ner.max_retries", 3)

	// 导出默认配置
	v.SetDefault("export.artifacts_enable", false)
	v.SetDefault("export.artifacts_path", "./data/exports")
}
