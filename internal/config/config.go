package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/lumiere-jewels/service-coupon/internal/domain/coupon"
	"github.com/lumiere-jewels/service-coupon/pkg/config"
)

// CouponConfig holds coupon-engine tuning.
type CouponConfig struct {
	EnforceAdmin    bool
	LockTTL         time.Duration
	DefaultValidity time.Duration
}

// ServiceConfig holds all configuration for the coupon service.
type ServiceConfig struct {
	Port               string
	AppEnv             string
	CORSAllowedOrigins string
	DBConfig           config.DatabaseConfig
	JWTConfig          config.JWTConfig
	KafkaConfig        config.KafkaConfig
	RedisConfig        config.RedisConfig
	CouponConfig       CouponConfig
}

// Load reads configuration from environment variables and returns a ServiceConfig.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("coupon")
	if err != nil {
		return nil, err
	}

	return &ServiceConfig{
		Port:               config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:             config.GetAppEnv(v),
		CORSAllowedOrigins: v.GetString("CORS_ALLOWED_ORIGINS"),
		DBConfig:           config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:          config.LoadJWTConfig(v),
		KafkaConfig:        config.LoadKafkaConfig(v),
		RedisConfig:        config.LoadRedisConfig(v),
		CouponConfig:       loadCouponConfig(v),
	}, nil
}

// loadCouponConfig extracts coupon-engine settings from Viper.
func loadCouponConfig(v *viper.Viper) CouponConfig {
	return CouponConfig{
		EnforceAdmin:    v.GetBool("COUPON_ENFORCE_ADMIN"),
		LockTTL:         config.GetDuration(v, "COUPON_LOCK_TTL", 30*time.Second),
		DefaultValidity: config.GetDuration(v, "COUPON_DEFAULT_VALIDITY", coupon.DefaultValidity),
	}
}
