package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Retry     RetryConfig     `mapstructure:"retry"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Macros    MacrosConfig    `mapstructure:"macros"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type EmbeddingConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimension  int           `mapstructure:"dimension"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type IndexConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Name      string        `mapstructure:"name"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RetrievalConfig struct {
	TopK          int     `mapstructure:"top_k"`
	MinScore      float64 `mapstructure:"min_score"`
	MaxDocs       int     `mapstructure:"max_docs"`
	MaxVariations int     `mapstructure:"max_variations"`
	FanOut        int     `mapstructure:"fan_out"`
}

type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

type LLMConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type QuotaConfig struct {
	FreeTotal  int    `mapstructure:"free_total"`
	ProWeekly  int    `mapstructure:"pro_weekly"`
	MaxWeekly  int    `mapstructure:"max_weekly"`
	TestUserID string `mapstructure:"test_user_id"`
	Timezone   string `mapstructure:"timezone"`
}

type MacrosConfig struct {
	TolerancePct float64 `mapstructure:"tolerance_pct"`
	DailyCarbTol float64 `mapstructure:"daily_carb_tol_g"`
	DailyPFTol   float64 `mapstructure:"daily_pf_tol_g"`
}

type RateLimitConfig struct {
	RequestsPerMinute int64 `mapstructure:"requests_per_minute"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

var GlobalConfig *Config

func InitConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/sakhee")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SAKHEE")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	GlobalConfig = &config
	return nil
}

func setDefaults() {
	viper.SetDefault("app.port", 8080)
	viper.SetDefault("app.mode", "debug")
	viper.SetDefault("app.name", "Sakhee Meal Plan Engine")
	viper.SetDefault("app.version", "1.0.0")

	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.max_open_conns", 25)
	viper.SetDefault("database.mysql.max_idle_conns", 5)
	viper.SetDefault("database.mysql.conn_max_lifetime", "300s")

	viper.SetDefault("database.redis.port", 6379)
	viper.SetDefault("database.redis.db", 0)
	viper.SetDefault("database.redis.pool_size", 10)
	viper.SetDefault("database.redis.max_retries", 3)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("embedding.cache_size", 500)
	viper.SetDefault("embedding.cache_ttl", "3600s")
	viper.SetDefault("embedding.batch_size", 100)
	viper.SetDefault("embedding.batch_delay", "200ms")
	viper.SetDefault("embedding.timeout", "15s")

	viper.SetDefault("index.namespace", "meal-templates")
	viper.SetDefault("index.timeout", "10s")

	viper.SetDefault("retrieval.top_k", 25)
	viper.SetDefault("retrieval.min_score", 0.3)
	viper.SetDefault("retrieval.max_docs", 20)
	viper.SetDefault("retrieval.max_variations", 3)
	viper.SetDefault("retrieval.fan_out", 4)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "10s")
	viper.SetDefault("retry.backoff_multiplier", 2.0)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.timeout", "60s")

	viper.SetDefault("quota.free_total", 1)
	viper.SetDefault("quota.pro_weekly", 3)
	viper.SetDefault("quota.max_weekly", 3)
	viper.SetDefault("quota.timezone", "Asia/Kolkata")

	viper.SetDefault("macros.tolerance_pct", 3.0)
	viper.SetDefault("macros.daily_carb_tol_g", 2.0)
	viper.SetDefault("macros.daily_pf_tol_g", 5.0)

	viper.SetDefault("rate_limit.requests_per_minute", 60)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.filename", "logs/app.log")
	viper.SetDefault("log.max_size", 500)
	viper.SetDefault("log.max_backups", 10)
	viper.SetDefault("log.max_age", 30)
}

func GetDSN() string {
	mysql := GlobalConfig.Database.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysql.User, mysql.Password, mysql.Host, mysql.Port, mysql.DBName)
}

func GetRedisAddr() string {
	redis := GlobalConfig.Database.Redis
	return fmt.Sprintf("%s:%d", redis.Host, redis.Port)
}
