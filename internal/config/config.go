package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`

	// Optional demo tenant seeded at startup
	SeedDir    string `json:"seedDir"`
	SeedName   string `json:"seedName"`
	SeedAPIKey string `json:"seedApiKey"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		AutoMigrate: false,

		SeedDir:    "",
		SeedName:   "demo",
		SeedAPIKey: "vt_test123demo456789",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath reads JSON from the given path, then applies ENV and flags.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (when the file exists)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("VERITAB_PORT", cfg.Port)
	cfg.DBURL = getenv("VERITAB_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("VERITAB_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.SeedDir = getenv("VERITAB_SEED_DIR", cfg.SeedDir)
	cfg.SeedName = getenv("VERITAB_SEED_NAME", cfg.SeedName)
	cfg.SeedAPIKey = getenv("VERITAB_SEED_API_KEY", cfg.SeedAPIKey)

	// Flag overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	db := flag.String("db", cfg.DBURL, "Postgres URL")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Create catalog relations at startup (true/false)")
	seedDir := flag.String("seed-dir", cfg.SeedDir, "Directory of YAML table declarations for the demo project (empty = no seeding)")
	seedName := flag.String("seed-name", cfg.SeedName, "Demo project name")
	seedKey := flag.String("seed-api-key", cfg.SeedAPIKey, "Demo project API key")

	flag.Parse()

	// A different config file passed via flag wins; re-read it.
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")
	cfg.SeedDir = strings.TrimSpace(*seedDir)
	cfg.SeedName = strings.TrimSpace(*seedName)
	cfg.SeedAPIKey = strings.TrimSpace(*seedKey)

	return cfg
}
