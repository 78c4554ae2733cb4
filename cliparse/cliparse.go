package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	MongoDatabase string
	TokenSecret   string
	Milestones    []int
	MilestoneMode string
	WriteRetries  int
	WriteTimeout  time.Duration
	SendBuffer    int
}

// ParseFlags reads CLI flags, then fills anything unset from the
// environment (and an optional .env file)
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var milestones, envFile string
	var writeTimeout string

	fs := flag.NewFlagSet("livetally", flag.ContinueOnError)

	// Network and storage (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or Mongo URI")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or mongo)")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", "", "Mongo database name")
	fs.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "JWT signing secret (prefer env)")

	// Tally and broadcast tuning
	fs.StringVar(&milestones, "milestones", "", "Comma separated turnout milestones")
	fs.StringVar(&cfg.MilestoneMode, "milestone-mode", "", "Milestone mode (reached or crossed)")
	fs.IntVar(&cfg.WriteRetries, "write-retries", -1, "Retries for transient ledger write failures")
	fs.StringVar(&writeTimeout, "write-timeout", "", "Timeout for one ledger write")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", 0, "Outbound events buffered per connection")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// A missing .env is fine; existing env vars always win
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", 3318)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", "sqlite")
	}
	switch cfg.DatabaseType {
	case "sqlite", "postgres", "mongo":
	default:
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = envString("MONGO_DATABASE", "campusvote")
	}

	// Secrets - MUST be provided
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.TokenSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	if milestones == "" {
		milestones = envString("TURNOUT_MILESTONES", "25,50,75,100")
	}
	ms, err := ParseMilestones(milestones)
	if err != nil {
		return Config{}, err
	}
	cfg.Milestones = ms

	if cfg.MilestoneMode == "" {
		cfg.MilestoneMode = envString("MILESTONE_MODE", "reached")
	}

	if cfg.WriteRetries < 0 {
		retries, err := envInt("WRITE_RETRIES", 3)
		if err != nil {
			return Config{}, err
		}
		cfg.WriteRetries = retries
	}
	if cfg.WriteRetries < 0 {
		return Config{}, errors.New("write retries must not be negative")
	}

	if writeTimeout == "" {
		writeTimeout = envString("WRITE_TIMEOUT", "5s")
	}
	cfg.WriteTimeout, err = time.ParseDuration(writeTimeout)
	if err != nil || cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid write timeout %q", writeTimeout)
	}

	if cfg.SendBuffer == 0 {
		buf, err := envInt("SEND_BUFFER", 64)
		if err != nil {
			return Config{}, err
		}
		cfg.SendBuffer = buf
	}
	if cfg.SendBuffer < 1 {
		return Config{}, errors.New("send buffer must be at least 1")
	}

	return cfg, nil
}

// ParseMilestones parses a comma separated list like "25,50,75,100"
func ParseMilestones(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid milestone %q", part)
		}
		if n < 1 || n > 100 {
			return nil, fmt.Errorf("milestone %d out of range 1..100", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one milestone required")
	}
	return out, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}
