package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envReplacer 將 relay.storage_timeout 對應到 MATCHCHAT_RELAY_STORAGE_TIMEOUT
var envReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Auth      AuthConfig
	Relay     RelayConfig
	WebSocket WebSocketConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig 描述訊息儲存後端
// Driver 可為 postgres、sqlite 或 badger，後兩者使用 Path
type DBConfig struct {
	Driver   string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string `mapstructure:"sslmode"`
	Path     string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RelayConfig 控制訊息轉送的驗證與持久化行為
type RelayConfig struct {
	MaxBodyLength  int           `mapstructure:"max_body_length"`
	StorageTimeout time.Duration `mapstructure:"storage_timeout"`
	StorageRetries int           `mapstructure:"storage_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	EchoToSender   bool          `mapstructure:"echo_to_sender"`
}

type WebSocketConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// SetDefaults 註冊所有設定鍵的預設值
// 只有註冊過的鍵才能被環境變數覆寫
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "match_chat")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "match_chat.db")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("relay.max_body_length", 2000)
	v.SetDefault("relay.storage_timeout", 5*time.Second)
	v.SetDefault("relay.storage_retries", 0)
	v.SetDefault("relay.retry_backoff", 200*time.Millisecond)
	v.SetDefault("relay.echo_to_sender", false)

	v.SetDefault("websocket.read_limit", 4096)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("websocket.ping_period", 54*time.Second)
	v.SetDefault("websocket.write_wait", 10*time.Second)
	v.SetDefault("websocket.send_buffer", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load 讀取設定：預設值 < config.yaml < 環境變數 (MATCHCHAT_ 前綴)
func Load() (*Config, error) {
	// .env 不存在時直接忽略
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./pkg/config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MATCHCHAT")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 檢查無法以預設值補足的設定
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite", "badger":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	if c.Relay.MaxBodyLength <= 0 {
		return errors.New("relay.max_body_length must be positive")
	}
	if c.Relay.StorageTimeout <= 0 {
		return errors.New("relay.storage_timeout must be positive")
	}
	if c.Relay.StorageRetries < 0 {
		return errors.New("relay.storage_retries must not be negative")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return errors.New("websocket.ping_period must be shorter than websocket.pong_wait")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return errors.New("websocket.send_buffer must be positive")
	}
	return nil
}
