package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Bucket    BucketConfig
	Vector    VectorConfig
	LLM       LLMConfig
	GitHub    GitHubConfig
	Search    SearchConfig
	Share     ShareConfig
	Templates TemplatesConfig
	Avatar    AvatarConfig
}

type AppConfig struct {
	Port           string
	LogMode        string
	PublicBaseURL  string
	CorsOrigins    []string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type DBConfig struct {
	Driver           string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string
	SQLitePath       string
}

type AuthConfig struct {
	JWTSecretKey string
	SessionTTL   time.Duration
	SessionStore string
}

type RedisConfig struct {
	Address  string
	Password string
	Channel  string
}

type BucketConfig struct {
	Driver             string
	LocalDir           string
	GCSBucket          string
	GCSCredentialsFile string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
}

type VectorConfig struct {
	QdrantAddr          string
	Collection          string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Enabled reports whether file indexing should run at all.
func (v VectorConfig) Enabled() bool {
	return v.QdrantAddr != ""
}

type LLMConfig struct {
	DefaultBaseURL string
	DefaultModel   string
	DefaultAPIKey  string
}

type GitHubConfig struct {
	APIURL        string
	Token         string
	WebhookSecret string
}

type SearchConfig struct {
	GoogleAPIKey string
	GoogleCX     string
	BingAPIKey   string
}

type ShareConfig struct {
	SendgridAPIKey    string
	SendgridFromEmail string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
}

type TemplatesConfig struct {
	Dir   string
	Watch bool
}

// AvatarConfig overrides the built-in avatar font and palette.
type AvatarConfig struct {
	FontPath   string
	ColorsPath string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "devforge")
	v.SetDefault("SQLITE_PATH", "data/devforge.db")

	v.SetDefault("JWT_SECRET_KEY", "defaultsecret")
	v.SetDefault("SESSION_TTL", 86400)
	v.SetDefault("SESSION_STORE", "memory")

	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CHANNEL", "devforge_hub_broadcast")

	v.SetDefault("BUCKET_DRIVER", "local")
	v.SetDefault("BUCKET_LOCAL_DIR", "data/bucket")
	v.SetDefault("MINIO_BUCKET", "devforge")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("QDRANT_COLLECTION", "devforge_files")
	v.SetDefault("EMBEDDING_MODEL", "nomic-embed-text")
	v.SetDefault("EMBEDDING_DIMENSIONS", 768)

	v.SetDefault("DEFAULT_LLM_BASE_URL", "http://localhost:11434/v1")
	v.SetDefault("DEFAULT_LLM_MODEL", "")

	v.SetDefault("GITHUB_API_URL", "https://api.github.com")

	v.SetDefault("SENDGRID_FROM_EMAIL", "no-reply@devforge.local")

	v.SetDefault("TEMPLATE_WATCH", false)
}

// Load reads defaults, the optional .env file and the process environment.
func Load(log *logger.Logger) (*Config, error) {
	log = log.With("component", "Config")
	log.Info("Attempting to load configuration now...")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed reading .env config: %w", err)
		}
		log.Debug("No .env file found, using environment and defaults")
	}

	r := reader{v: v, log: log}
	c := &Config{
		App: AppConfig{
			Port:           r.getString("PORT"),
			LogMode:        r.getString("LOG_MODE"),
			PublicBaseURL:  strings.TrimSuffix(r.getString("PUBLIC_BASE_URL"), "/"),
			CorsOrigins:    splitList(r.getString("CORS_ORIGINS")),
			MaxUploadBytes: r.getInt64("MAX_UPLOAD_BYTES"),
			RateLimitRPS:   r.getFloat("RATE_LIMIT_RPS"),
			RateLimitBurst: r.getInt("RATE_LIMIT_BURST"),
		},
		DB: DBConfig{
			Driver:           strings.ToLower(r.getString("DB_DRIVER")),
			PostgresHost:     r.getString("POSTGRES_HOST"),
			PostgresPort:     r.getString("POSTGRES_PORT"),
			PostgresUser:     r.getString("POSTGRES_USER"),
			PostgresPassword: r.getSecret("POSTGRES_PASSWORD"),
			PostgresName:     r.getString("POSTGRES_NAME"),
			SQLitePath:       r.getString("SQLITE_PATH"),
		},
		Auth: AuthConfig{
			JWTSecretKey: r.getSecret("JWT_SECRET_KEY"),
			SessionTTL:   time.Duration(r.getInt("SESSION_TTL")) * time.Second,
			SessionStore: strings.ToLower(r.getString("SESSION_STORE")),
		},
		Redis: RedisConfig{
			Address:  r.getString("REDIS_ADDRESS"),
			Password: r.getSecret("REDIS_PASSWORD"),
			Channel:  r.getString("REDIS_CHANNEL"),
		},
		Bucket: BucketConfig{
			Driver:             strings.ToLower(r.getString("BUCKET_DRIVER")),
			LocalDir:           r.getString("BUCKET_LOCAL_DIR"),
			GCSBucket:          r.getString("GCS_BUCKET"),
			GCSCredentialsFile: r.getString("GCS_CREDENTIALS_FILE"),
			MinioEndpoint:      r.getString("MINIO_ENDPOINT"),
			MinioAccessKey:     r.getSecret("MINIO_ACCESS_KEY"),
			MinioSecretKey:     r.getSecret("MINIO_SECRET_KEY"),
			MinioBucket:        r.getString("MINIO_BUCKET"),
			MinioUseSSL:        r.getBool("MINIO_USE_SSL"),
		},
		Vector: VectorConfig{
			QdrantAddr:          r.getString("QDRANT_ADDR"),
			Collection:          r.getString("QDRANT_COLLECTION"),
			EmbeddingModel:      r.getString("EMBEDDING_MODEL"),
			EmbeddingDimensions: r.getInt("EMBEDDING_DIMENSIONS"),
		},
		LLM: LLMConfig{
			DefaultBaseURL: r.getString("DEFAULT_LLM_BASE_URL"),
			DefaultModel:   r.getString("DEFAULT_LLM_MODEL"),
			DefaultAPIKey:  r.getSecret("DEFAULT_LLM_API_KEY"),
		},
		GitHub: GitHubConfig{
			APIURL:        strings.TrimSuffix(r.getString("GITHUB_API_URL"), "/"),
			Token:         r.getSecret("GITHUB_TOKEN"),
			WebhookSecret: r.getSecret("GITHUB_WEBHOOK_SECRET"),
		},
		Search: SearchConfig{
			GoogleAPIKey: r.getSecret("GOOGLE_SEARCH_API_KEY"),
			GoogleCX:     r.getString("GOOGLE_SEARCH_CX"),
			BingAPIKey:   r.getSecret("BING_SEARCH_API_KEY"),
		},
		Share: ShareConfig{
			SendgridAPIKey:    r.getSecret("SENDGRID_API_KEY"),
			SendgridFromEmail: r.getString("SENDGRID_FROM_EMAIL"),
			TwilioAccountSID:  r.getString("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:   r.getSecret("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber:  r.getString("TWILIO_FROM_NUMBER"),
		},
		Templates: TemplatesConfig{
			Dir:   r.getString("TEMPLATE_DIR"),
			Watch: r.getBool("TEMPLATE_WATCH"),
		},
		Avatar: AvatarConfig{
			FontPath:   r.getString("AVATAR_FONT"),
			ColorsPath: r.getString("AVATAR_COLORS_JSON_PATH"),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	log.Info("Configuration loaded :)")
	return c, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver)
	}
	switch c.Auth.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.Auth.SessionStore)
	}
	if c.Auth.SessionStore == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("SESSION_STORE=redis requires REDIS_ADDRESS")
	}
	switch c.Bucket.Driver {
	case "local", "gcs", "minio":
	default:
		return fmt.Errorf("BUCKET_DRIVER must be local, gcs or minio, got %q", c.Bucket.Driver)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.App.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// reader logs every lookup the same way for every key.
type reader struct {
	v   *viper.Viper
	log *logger.Logger
}

func (r reader) getString(key string) string {
	val := r.v.GetString(key)
	r.log.Debug("Config value loaded", "key", key, "value", val, "fromEnv", r.v.IsSet(key))
	return val
}

func (r reader) getSecret(key string) string {
	val := r.v.GetString(key)
	r.log.Debug("Config secret loaded", "key", key, "set", val != "")
	return val
}

func (r reader) getInt(key string) int {
	val := r.v.GetInt(key)
	r.log.Debug("Config value loaded (int)", "key", key, "value", val)
	return val
}

func (r reader) getInt64(key string) int64 {
	val := r.v.GetInt64(key)
	r.log.Debug("Config value loaded (int64)", "key", key, "value", val)
	return val
}

func (r reader) getFloat(key string) float64 {
	val := r.v.GetFloat64(key)
	r.log.Debug("Config value loaded (float)", "key", key, "value", val)
	return val
}

func (r reader) getBool(key string) bool {
	val := r.v.GetBool(key)
	r.log.Debug("Config value loaded (bool)", "key", key, "value", val)
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
