package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port           int      `mapstructure:"port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"running"`
	Redis struct {
		Addrs    []string      `mapstructure:"addrs"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Mysql struct {
		DSN         string `mapstructure:"dsn"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"mysql"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Auth struct {
		JWTSecret   string        `mapstructure:"jwt_secret"`
		TokenExpiry time.Duration `mapstructure:"token_expiry"`
	} `mapstructure:"auth"`
	Gateway struct {
		MaxContentLength int           `mapstructure:"max_content_length"`
		CallTimeout      time.Duration `mapstructure:"call_timeout"`
		MaxInflight      int           `mapstructure:"max_inflight"`
		UserLeftScope    string        `mapstructure:"user_left_scope"`
	} `mapstructure:"gateway"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 3000)
	v.SetDefault("running.allowed_origins", []string{"http://localhost:8081"})
	v.SetDefault("redis.addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 3600*time.Second)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.auto_migrate", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "note-events")
	// AutomaticEnv 只对已知的键生效，所以密钥也要有默认值
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", 30*time.Minute)
	v.SetDefault("gateway.max_content_length", 25000)
	v.SetDefault("gateway.call_timeout", 3*time.Second)
	v.SetDefault("gateway.max_inflight", 100)
	v.SetDefault("gateway.user_left_scope", "global")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load 读取 config.yaml，环境变量 NOTECOLLAB_* 覆盖同名配置。
// paths 为空时按默认目录查找，兼容从项目根目录或 backend 目录启动
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	// NOTECOLLAB_AUTH_JWT_SECRET -> auth.jwt_secret
	v.SetEnvPrefix("NOTECOLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时只用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
