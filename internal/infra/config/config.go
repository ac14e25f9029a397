package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"community_broadcast_bot/internal/domain/member"

	"github.com/joho/godotenv"
)

// ThrottleConfig holds the outbound pacing policy of one dispatch cycle.
// The defaults mirror the platform rate limits the bot was tuned against:
// a randomized 1-4s pause every 4th recipient, a 40s pause every 100th, and
// a hard stop after 1000 recipients per cycle.
type ThrottleConfig struct {
	ShortEvery int
	ShortMin   time.Duration
	ShortMax   time.Duration
	LongEvery  int
	LongDelay  time.Duration
	HardCap    int
}

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken   string
	StoreDriver     string // "postgres" or "sqlite"
	StoreDSN        string
	AdminTelegramID int64
	LogLevel        string
	Environment     string

	// GroupAssets maps a group chat ID to the directory holding its
	// welcome.* and daily.* assets.
	GroupAssets map[int64]string

	CronSpecDailyBroadcast string
	CronSpecDailyReset     string
	BroadcastFilter        member.Filter
	StartupCatchUp         bool
	PresenceTrigger        bool

	Throttle          ThrottleConfig
	SendTimeout       time.Duration
	SendRatePerSec    int
	OnlineWindow      time.Duration
	DirectoryPageSize int
}

// Groups returns the configured group IDs in a stable order.
func (c *AppConfig) Groups() []int64 {
	ids := make([]int64, 0, len(c.GroupAssets))
	for id := range c.GroupAssets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.StoreDriver = strings.ToLower(os.Getenv("STORE_DRIVER"))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "postgres"
	}
	cfg.StoreDSN = os.Getenv("STORE_DSN")
	if cfg.StoreDSN == "" {
		// Alias kept for older deployments.
		cfg.StoreDSN = os.Getenv("DATABASE_URL")
	}
	if cfg.StoreDSN == "" {
		return nil, fmt.Errorf("STORE_DSN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.GroupAssets, err = parseGroupAssets(os.Getenv("GROUP_ASSETS"))
	if err != nil {
		return nil, err
	}
	if len(cfg.GroupAssets) == 0 {
		return nil, fmt.Errorf("GROUP_ASSETS is not set (expected \"<chatID>=<dir>[,<chatID>=<dir>...]\")")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecDailyBroadcast = envOr("CRON_SPEC_DAILY_BROADCAST", "0 13 * * *")
	cfg.CronSpecDailyReset = envOr("CRON_SPEC_DAILY_RESET", "0 0 * * *")

	filterStr := envOr("BROADCAST_FILTER", string(member.FilterAll))
	filter, ok := member.ParseFilter(filterStr)
	if !ok {
		return nil, fmt.Errorf("invalid BROADCAST_FILTER %q (want all, online or opted_in)", filterStr)
	}
	cfg.BroadcastFilter = filter

	cfg.StartupCatchUp, err = envBool("STARTUP_CATCHUP", false)
	if err != nil {
		return nil, err
	}
	cfg.PresenceTrigger, err = envBool("PRESENCE_TRIGGER", false)
	if err != nil {
		return nil, err
	}

	if cfg.Throttle, err = loadThrottle(); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = envDuration("SEND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendRatePerSec, err = envInt("SEND_RATE_PER_SEC", 25); err != nil {
		return nil, err
	}
	if cfg.OnlineWindow, err = envDuration("ONLINE_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DirectoryPageSize, err = envInt("DIRECTORY_PAGE_SIZE", 200); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadThrottle() (ThrottleConfig, error) {
	var (
		t   ThrottleConfig
		err error
	)
	if t.ShortEvery, err = envInt("THROTTLE_SHORT_EVERY", 4); err != nil {
		return t, err
	}
	if t.ShortMin, err = envDuration("THROTTLE_SHORT_MIN", 1*time.Second); err != nil {
		return t, err
	}
	if t.ShortMax, err = envDuration("THROTTLE_SHORT_MAX", 4*time.Second); err != nil {
		return t, err
	}
	if t.LongEvery, err = envInt("THROTTLE_LONG_EVERY", 100); err != nil {
		return t, err
	}
	if t.LongDelay, err = envDuration("THROTTLE_LONG_DELAY", 40*time.Second); err != nil {
		return t, err
	}
	if t.HardCap, err = envInt("THROTTLE_HARD_CAP", 1000); err != nil {
		return t, err
	}
	if t.ShortMax < t.ShortMin {
		return t, fmt.Errorf("THROTTLE_SHORT_MAX must not be smaller than THROTTLE_SHORT_MIN")
	}
	return t, nil
}

// parseGroupAssets parses "<chatID>=<dir>[,<chatID>=<dir>...]".
func parseGroupAssets(raw string) (map[int64]string, error) {
	out := make(map[int64]string)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idStr, dir, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("invalid GROUP_ASSETS entry %q", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid group ID in GROUP_ASSETS entry %q: %w", pair, err)
		}
		out[id] = strings.TrimSpace(dir)
	}
	return out, nil
}

func envOr(key, def string) string {
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
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
