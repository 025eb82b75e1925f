package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	HTTP   HTTPConfig
	Engine EngineConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
}

// ConnectionString devuelve DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con URL encoding para caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EngineConfig parámetros del motor de reservas.
type EngineConfig struct {
	TxTimeout            time.Duration // presupuesto por transacción
	LockTimeout          time.Duration // lock_timeout de PostgreSQL; 0 = solo el presupuesto de la tx
	MaxReservedPerLevel  int64         // tope de reserved por nivel; 0 = sin tope
	MaxRetries           int           // reintentos internos ante conflictos de serialización
	RetryBackoff         time.Duration
	ReconcileConcurrency int
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, RESERVATION_TX_TIMEOUT, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // archivo opcional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetInt("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: v.GetInt("JWT_EXPIRATION_MINUTES"),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Engine: EngineConfig{
			TxTimeout:            v.GetDuration("RESERVATION_TX_TIMEOUT"),
			LockTimeout:          v.GetDuration("RESERVATION_LOCK_TIMEOUT"),
			MaxReservedPerLevel:  v.GetInt64("RESERVATION_MAX_RESERVED_PER_LEVEL"),
			MaxRetries:           v.GetInt("RESERVATION_MAX_RETRIES"),
			RetryBackoff:         v.GetDuration("RESERVATION_RETRY_BACKOFF"),
			ReconcileConcurrency: v.GetInt("RECONCILE_CONCURRENCY"),
		},
	}

	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "inventario-reservas")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "inventario")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)

	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("JWT_ISSUER", "inventario-reservas")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)

	v.SetDefault("RESERVATION_TX_TIMEOUT", "30s")
	v.SetDefault("RESERVATION_LOCK_TIMEOUT", "0s")
	v.SetDefault("RESERVATION_MAX_RESERVED_PER_LEVEL", 1_000_000)
	v.SetDefault("RESERVATION_MAX_RETRIES", 3)
	v.SetDefault("RESERVATION_RETRY_BACKOFF", "50ms")
	v.SetDefault("RECONCILE_CONCURRENCY", 4)
}

func (c EngineConfig) validate() error {
	if c.TxTimeout <= 0 {
		return fmt.Errorf("config: RESERVATION_TX_TIMEOUT debe ser positivo")
	}
	if c.LockTimeout < 0 || c.MaxReservedPerLevel < 0 || c.MaxRetries < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("config: parámetros del motor no pueden ser negativos")
	}
	if c.ReconcileConcurrency <= 0 {
		return fmt.Errorf("config: RECONCILE_CONCURRENCY debe ser positivo")
	}
	return nil
}
