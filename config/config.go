// Package config 提供了分类器的配置加载与管理能力.
// 配置文件为 TOML，环境变量前缀 BAYES 可覆盖任意键（如 BAYES_BAYES_GRAMSIZE），
// 加载后通过 validator 校验，文件变更时热更新日志级别并回调已注册的钩子.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/bayes/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version        string               `mapstructure:"version"        toml:"version"`
	Bayes          BayesConfig          `mapstructure:"bayes"          toml:"bayes"`
	Log            LogConfig            `mapstructure:"log"            toml:"log"`
	Metrics        MetricsConfig        `mapstructure:"metrics"        toml:"metrics"`
	Tracing        TracingConfig        `mapstructure:"tracing"        toml:"tracing"`
	Minio          MinioConfig          `mapstructure:"minio"          toml:"minio"`
	Redis          RedisConfig          `mapstructure:"redis"          toml:"redis"`
	BigCache       BigCacheConfig       `mapstructure:"bigcache"       toml:"bigcache"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitbreaker" toml:"circuitbreaker"`
	Kafka          KafkaConfig          `mapstructure:"kafka"          toml:"kafka"`
}

// BayesConfig 分类器核心参数，键名与扁平参数表一致.
type BayesConfig struct {
	Alpha           float64 `mapstructure:"alpha_i"         toml:"alpha_i"         validate:"gt=0"`
	DataSource      string  `mapstructure:"dataSource"      toml:"dataSource"      validate:"oneof=file minio redis memory"`
	ClassifierType  string  `mapstructure:"classifierType"  toml:"classifierType"  validate:"oneof=bayes cbayes"`
	DefaultCat      string  `mapstructure:"defaultCat"      toml:"defaultCat"      validate:"required"`
	Encoding        string  `mapstructure:"encoding"        toml:"encoding"        validate:"required"`
	GramSize        int     `mapstructure:"gramSize"        toml:"gramSize"        validate:"min=1"`
	Verbose         bool    `mapstructure:"verbose"         toml:"verbose"`
	BasePath        string  `mapstructure:"basePath"        toml:"basePath"`
	TestDirPath     string  `mapstructure:"testDirPath"     toml:"testDirPath"`
	UnknownFeatures string  `mapstructure:"unknownFeatures" toml:"unknownFeatures" validate:"oneof=skip smooth"`
	Workers         int     `mapstructure:"workers"         toml:"workers"         validate:"min=1"`
	ShardRetries    int     `mapstructure:"shardRetries"    toml:"shardRetries"    validate:"min=0"`
	ShardLines      int     `mapstructure:"shardLines"      toml:"shardLines"      validate:"min=0"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"`       // 日志级别。
	Format     string `mapstructure:"format"      toml:"format"`      // 日志格式（json/text）。
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径。
	Console    bool   `mapstructure:"console"     toml:"console"`     // 写文件时是否同时输出到终端。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否启用压缩。
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MinioConfig 定义 S3 兼容对象存储 MinIO 的连接参数.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"          toml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"     toml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"       toml:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"           toml:"use_ssl"`
}

// RedisConfig 定义 Redis 连接与池化参数.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"          toml:"addr"`
	Password     string        `mapstructure:"password"      toml:"password"`
	DB           int           `mapstructure:"db"            toml:"db"`
	PoolSize     int           `mapstructure:"pool_size"     toml:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout"`
}

// BigCacheConfig 高性能本地内存缓存参数，作为 Redis 计数的读穿缓存.
type BigCacheConfig struct {
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"`
}

// CircuitBreakerConfig 定义熔断器（gobreaker）的保护策略.
type CircuitBreakerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
	Enabled     bool          `mapstructure:"enabled"      toml:"enabled"`
}

// KafkaConfig 定义分片结果流的 Kafka 参数.
type KafkaConfig struct {
	Topic        string        `mapstructure:"topic"         toml:"topic"`
	GroupID      string        `mapstructure:"group_id"      toml:"group_id"`
	Brokers      []string      `mapstructure:"brokers"       toml:"brokers"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout"`
	MaxWait      time.Duration `mapstructure:"max_wait"      toml:"max_wait"`
	RequiredAcks int           `mapstructure:"required_acks" toml:"required_acks"`
	Enabled      bool          `mapstructure:"enabled"       toml:"enabled"`
}

// LoggingConfig 转换为 logging 包的配置；verbose 打开时强制 debug 级别.
func (c *Config) LoggingConfig(service string) logging.Config {
	lvl := c.Log.Level
	if c.Bayes.Verbose {
		lvl = logging.LevelFromVerbose(true)
	}
	return logging.Config{
		Service:    service,
		Module:     "bayes",
		Level:      lvl,
		Format:     c.Log.Format,
		File:       c.Log.File,
		Console:    c.Log.Console,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

var (
	mu        sync.Mutex
	vInstance = viper.New()
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault("bayes."+key, value)
	}
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("bigcache.shards", 64)
	v.SetDefault("bigcache.life_window", 10*time.Minute)
	v.SetDefault("bigcache.clean_window", 5*time.Minute)
	v.SetDefault("bigcache.max_entry_size", 64)
	v.SetDefault("circuitbreaker.max_requests", 1)
	v.SetDefault("circuitbreaker.interval", time.Minute)
	v.SetDefault("circuitbreaker.timeout", 30*time.Second)
	v.SetDefault("kafka.topic", "bayes-partials")
	v.SetDefault("kafka.max_wait", time.Second)
}

// Load 读取 TOML 配置文件、叠加环境变量并校验，随后开始监听文件变更.
// 变更会同步日志级别并依次调用已注册的钩子。path 为空时只使用默认值与环境变量.
func Load(path string, conf *Config) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BAYES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return ErrInvalidValue.WithDetail("read config %s", path).WithCause(err)
		}
	}
	if err := v.Unmarshal(conf); err != nil {
		return ErrInvalidValue.WithDetail("unmarshal config").WithCause(err)
	}

	validate := validator.New()
	if err := validate.Struct(conf); err != nil {
		return ErrInvalidValue.WithDetail("config validation failed").WithCause(err)
	}

	mu.Lock()
	vInstance = v
	mu.Unlock()

	if path == "" {
		return nil
	}
	v.WatchConfig()
	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		var next Config
		if err := v.Unmarshal(&next); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := validate.Struct(&next); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		mu.Lock()
		*conf = next
		hooks := append([]func(*Config){}, onReload...)
		mu.Unlock()

		logging.SetLevel(conf.LoggingConfig("").Level)
		slog.Info("config hot-reloaded and validated successfully")
		for _, hook := range hooks {
			hook(conf)
		}
	})

	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)
		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)
		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回最近一次 Load 使用的 Viper 实例.
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return vInstance
}

// String 便于调试输出.
func (b BayesConfig) String() string {
	return fmt.Sprintf("alpha_i=%g classifierType=%s gramSize=%d dataSource=%s", b.Alpha, b.ClassifierType, b.GramSize, b.DataSource)
}
