package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod
	FEURL string // フロントURL（CORS、決済後のリダイレクト先）

	DBDriver    string // postgres / sqlite
	DatabaseURL string // postgres DSN
	SQLitePath  string // sqlite ファイル（開発用）

	JWTSecret string // 管理者JWT署名シークレット

	Kakao   KakaoConfig
	Naver   NaverConfig
	Payment PaymentConfig
	LLM     LLMConfig
	Cache   CacheConfig
	Relay   RelayConfig
	Bus     BusConfig
}

type KakaoConfig struct {
	BaseURL   string
	SecretKey string
	CID       string
}

type NaverConfig struct {
	BaseURL      string
	PartnerID    string
	ClientID     string
	ClientSecret string
	ChainID      string
	Mode         string // development / production
}

type PaymentConfig struct {
	PrepareTimeout  time.Duration
	ApproveTimeout  time.Duration
	CancelTimeout   time.Duration
	CallbackBaseURL string        // 決済事業者から戻ってくるAPIのURL
	DedupeWindow    time.Duration // NaverPay 重複注文の判定期間
	PendingTTL      time.Duration // これより古い pending は payment_failed にする
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type CacheConfig struct {
	RedisAddr string // 空ならメモリキャッシュ
	MenuTTL   time.Duration
}

type RelayConfig struct {
	Kind         string // none / kafka / amqp
	KafkaBrokers []string
	KafkaTopic   string
	AMQPURL      string
	AMQPExchange string
}

type BusConfig struct {
	MailboxSize int
}

// Loadは .env と環境変数（任意で config.yaml）から読む
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile はpathが空でなければそのyamlも読む。
func LoadFile(path string) (Config, error) {
	// .env は無くてもよい
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Port:  v.GetString("port"),
		GoEnv: v.GetString("go_env"),
		FEURL: v.GetString("fe_url"),

		DBDriver:    v.GetString("db_driver"),
		DatabaseURL: v.GetString("database_url"),
		SQLitePath:  v.GetString("sqlite_path"),

		JWTSecret: v.GetString("jwt_secret"),

		Kakao: KakaoConfig{
			BaseURL:   v.GetString("kakao.base_url"),
			SecretKey: v.GetString("kakao.secret_key"),
			CID:       v.GetString("kakao.cid"),
		},
		Naver: NaverConfig{
			BaseURL:      v.GetString("naver.base_url"),
			PartnerID:    v.GetString("naver.partner_id"),
			ClientID:     v.GetString("naver.client_id"),
			ClientSecret: v.GetString("naver.client_secret"),
			ChainID:      v.GetString("naver.chain_id"),
			Mode:         v.GetString("naver.mode"),
		},
		Payment: PaymentConfig{
			PrepareTimeout:  v.GetDuration("payment.prepare_timeout"),
			ApproveTimeout:  v.GetDuration("payment.approve_timeout"),
			CancelTimeout:   v.GetDuration("payment.cancel_timeout"),
			CallbackBaseURL: v.GetString("payment.callback_base_url"),
			DedupeWindow:    v.GetDuration("payment.dedupe_window"),
			PendingTTL:      v.GetDuration("payment.pending_ttl"),
		},
		LLM: LLMConfig{
			BaseURL: v.GetString("llm.base_url"),
			APIKey:  v.GetString("llm.api_key"),
			Model:   v.GetString("llm.model"),
			Timeout: v.GetDuration("llm.timeout"),
		},
		Cache: CacheConfig{
			RedisAddr: v.GetString("cache.redis_addr"),
			MenuTTL:   v.GetDuration("cache.menu_ttl"),
		},
		Relay: RelayConfig{
			Kind:         v.GetString("relay.kind"),
			KafkaBrokers: splitList(v.GetString("relay.kafka_brokers")),
			KafkaTopic:   v.GetString("relay.kafka_topic"),
			AMQPURL:      v.GetString("relay.amqp_url"),
			AMQPExchange: v.GetString("relay.amqp_exchange"),
		},
		Bus: BusConfig{
			MailboxSize: v.GetInt("bus.mailbox_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("go_env", "dev")
	v.SetDefault("fe_url", "http://localhost:3000")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("sqlite_path", "cafe.db")

	v.SetDefault("kakao.base_url", "https://open-api.kakaopay.com")
	v.SetDefault("kakao.cid", "TC0ONETIME")
	v.SetDefault("naver.base_url", "https://dev-pub.apis.naver.com")
	v.SetDefault("naver.mode", "development")

	v.SetDefault("payment.prepare_timeout", 30*time.Second)
	v.SetDefault("payment.approve_timeout", 60*time.Second)
	v.SetDefault("payment.cancel_timeout", 60*time.Second)
	v.SetDefault("payment.callback_base_url", "http://localhost:8080")
	v.SetDefault("payment.dedupe_window", 10*time.Minute)
	v.SetDefault("payment.pending_ttl", 30*time.Minute)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("cache.menu_ttl", 5*time.Minute)

	v.SetDefault("relay.kind", "none")
	v.SetDefault("relay.kafka_topic", "cafe.order-events")
	v.SetDefault("relay.amqp_exchange", "cafe.order-events")

	v.SetDefault("bus.mailbox_size", 64)
}

func (c Config) validate() error {
	//必須チェック
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite: %q", c.DBDriver)
	}
	switch c.Relay.Kind {
	case "none", "":
	case "kafka":
		if len(c.Relay.KafkaBrokers) == 0 {
			return fmt.Errorf("RELAY_KAFKA_BROKERS is required")
		}
	case "amqp":
		if c.Relay.AMQPURL == "" {
			return fmt.Errorf("RELAY_AMQP_URL is required")
		}
	default:
		return fmt.Errorf("RELAY_KIND must be none, kafka or amqp: %q", c.Relay.Kind)
	}
	if c.Bus.MailboxSize < 1 {
		return fmt.Errorf("BUS_MAILBOX_SIZE must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
