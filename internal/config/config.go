// Package config assembles the application configuration from the layered
// yaml files plus environment overrides.
package config

import (
	"fmt"

	pkgconfig "schoolmail/pkg/config"
)

type Config struct {
	DB     pkgconfig.DBConfig     `yaml:"db"`
	MQ     pkgconfig.MQConfig     `yaml:"mq"`
	Redis  pkgconfig.RedisConfig  `yaml:"redis"`
	JWT    pkgconfig.JWTConfig    `yaml:"jwt"`
	Server pkgconfig.ServerConfig `yaml:"server"`
	Mail   pkgconfig.MailConfig   `yaml:"mail"`
	Oracle pkgconfig.OracleConfig `yaml:"oracle"`
	Ingest pkgconfig.IngestConfig `yaml:"ingest"`
}

// Load reads config/base.yaml, the CONFIG_ENV overlay and secrets.env, then
// applies environment variable overrides on top.
func Load(configDir string) (*Config, error) {
	merged, err := pkgconfig.LoadConfig(pkgconfig.GetConfigEnv(), configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := pkgconfig.Decode(merged, &cfg); err != nil {
		return nil, err
	}

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideMailFromEnv(&cfg.Mail)
	pkgconfig.OverrideOracleFromEnv(&cfg.Oracle)

	if cfg.Ingest.SimilarityThreshold <= 0 || cfg.Ingest.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("ingest.similarity_threshold must be in (0, 1], got %v", cfg.Ingest.SimilarityThreshold)
	}

	return &cfg, nil
}
