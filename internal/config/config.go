package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"
)

const EnvConfigPath = "CATALOG_CONFIG"

type Config struct {
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	Storage Storage `yaml:"storage"`
	Media   Media   `yaml:"media"`
}

type Server struct {
	ListenAddr     string `yaml:"listenAddr"`
	DBDriver       string `yaml:"dbDriver"` // postgres, sqlite
	PostgresDsn    string `yaml:"postgresDsn"`
	SqliteDsn      string `yaml:"sqliteDsn"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisDB        int    `yaml:"redisDB"`
	MemcachedAddr  string `yaml:"memcachedAddr"`
	EnableTrace    bool   `yaml:"enableTrace"`
	TraceEndpoint  string `yaml:"traceEndpoint"`
	LogMode        string `yaml:"logMode"`
	TempDir        string `yaml:"tempDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwtSecret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type Storage struct {
	Backend       string `yaml:"backend"` // minio, s3, gcs
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"publicBaseURL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioSecure    bool   `yaml:"minioSecure"`

	S3Region string `yaml:"s3Region"`

	GCSCredentialsFile string `yaml:"gcsCredentialsFile"`
}

type Media struct {
	FFProbePath string `yaml:"ffprobePath"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode %s", path)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.DBDriver == "" {
		c.Server.DBDriver = "postgres"
	}
	if c.Server.LogMode == "" {
		c.Server.LogMode = "development"
	}
	if c.Server.TempDir == "" {
		c.Server.TempDir = os.TempDir()
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 512 << 20
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "vidcatalog"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "minio"
	}
	if c.Media.FFProbePath == "" {
		c.Media.FFProbePath = "ffprobe"
	}
}

func (c Config) Validate() error {
	switch c.Server.DBDriver {
	case "postgres":
		if c.Server.PostgresDsn == "" {
			return errors.New("server.postgresDsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Server.SqliteDsn == "" {
			return errors.New("server.sqliteDsn is required for the sqlite driver")
		}
	default:
		return errors.Errorf("unknown server.dbDriver %q", c.Server.DBDriver)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}

	switch c.Storage.Backend {
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			return errors.New("storage.minioEndpoint is required for the minio backend")
		}
	case "s3", "gcs":
	default:
		return errors.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}

	return nil
}

func (s Server) DSN() string {
	if s.DBDriver == "sqlite" {
		return s.SqliteDsn
	}
	return s.PostgresDsn
}
