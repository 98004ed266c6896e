package config

import (
	"os"
	"strconv"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// MailConfig 邮件源配置
type MailConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Token          string   `yaml:"token"`
	AllowedSenders []string `yaml:"allowed_senders"`
}

// OracleConfig 提取模型配置
type OracleConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IngestConfig 摄取批处理配置
type IngestConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	OracleWorkers       int     `yaml:"oracle_workers"`
	RunLockTTLSeconds   int     `yaml:"run_lock_ttl_seconds"`
	MaxSchemaRetries    int64   `yaml:"max_schema_retries"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideMailFromEnv 从环境变量覆盖邮件源配置
func OverrideMailFromEnv(cfg *MailConfig) {
	if url := os.Getenv("MAIL_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	if token := os.Getenv("MAIL_TOKEN"); token != "" {
		cfg.Token = token
	}
}

// OverrideOracleFromEnv 从环境变量覆盖模型配置
func OverrideOracleFromEnv(cfg *OracleConfig) {
	if url := os.Getenv("ORACLE_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	if key := os.Getenv("ORACLE_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv("ORACLE_MODEL"); model != "" {
		cfg.Model = model
	}
}
