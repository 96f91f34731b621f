package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendYandexDisk   = "yadisk"
	BackendGoogleSheets = "gsheets"
)

type Config struct {
	LedgerBackend string

	YandexDiskToken string
	YandexFilePath  string
	YandexDiskAPI   string

	SpreadsheetID            string
	SpreadsheetSheet         string
	GoogleServiceAccountJSON string

	// Empty key is valid: hype messages fall back to fixed text.
	GeminiAPIKey string
	GeminiModel  string

	TelegramToken string
	AdminTGIDs    map[int64]bool

	HTTPAddr      string
	BasePublicURL string
	ExportSecret  string
	HTTPTimeout   time.Duration

	RedisAddr  string
	RateLimit  int
	RateWindow time.Duration
	// X-Forwarded-For is only read from these peers.
	TrustedProxies []netip.Prefix

	Location *time.Location
}

func FromEnv() (Config, error) {
	var c Config
	c.LedgerBackend = strings.ToLower(env("LEDGER_BACKEND", BackendYandexDisk))

	c.YandexDiskToken = env("YANDEX_DISK_TOKEN", "")
	c.YandexFilePath = env("YANDEX_FILE_PATH", "/Приложения/Регистрация.xlsx")
	c.YandexDiskAPI = strings.TrimRight(env("YANDEX_DISK_API", "https://cloud-api.yandex.net/v1/disk"), "/")

	c.SpreadsheetID = env("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	c.SpreadsheetSheet = env("GOOGLE_SHEETS_SHEET", "Регистрации")
	c.GoogleServiceAccountJSON = env("GOOGLE_SERVICE_ACCOUNT_JSON", "")

	c.GeminiAPIKey = env("GEMINI_API_KEY", "")
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = env("VITE_GEMINI_API_KEY", "")
	}
	c.GeminiModel = env("GEMINI_MODEL", "gemini-2.5-flash")

	c.TelegramToken = env("TELEGRAM_BOT_TOKEN", "")
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.HTTPAddr = env("HTTP_ADDR", ":8080")
	c.BasePublicURL = strings.TrimRight(env("BASE_PUBLIC_URL", ""), "/")
	c.ExportSecret = env("EXPORT_SECRET", "change-me")

	c.RedisAddr = env("REDIS_ADDR", "")

	var err error
	if c.HTTPTimeout, err = duration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return c, err
	}
	if c.RateWindow, err = duration("RATE_WINDOW", time.Minute); err != nil {
		return c, err
	}
	if c.RateLimit, err = integer("RATE_LIMIT", 5); err != nil {
		return c, err
	}
	if c.TrustedProxies, err = prefixes("TRUSTED_PROXIES"); err != nil {
		return c, err
	}

	tz := env("TIMEZONE", "Europe/Moscow")
	c.Location, err = time.LoadLocation(tz)
	if err != nil {
		if tz != "Europe/Moscow" {
			return c, fmt.Errorf("TIMEZONE: %w", err)
		}
		c.Location = time.FixedZone("MSK", 3*60*60)
	}

	switch c.LedgerBackend {
	case BackendYandexDisk:
		if c.YandexDiskToken == "" {
			return c, fmt.Errorf("YANDEX_DISK_TOKEN is empty")
		}
		if c.YandexFilePath == "" {
			return c, fmt.Errorf("YANDEX_FILE_PATH is empty")
		}
	case BackendGoogleSheets:
		if c.SpreadsheetID == "" {
			return c, fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if c.GoogleServiceAccountJSON == "" {
			return c, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	default:
		return c, fmt.Errorf("unknown LEDGER_BACKEND: %s", c.LedgerBackend)
	}

	return c, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := env(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}

// prefixes parses a comma-separated list of IPs or CIDRs.
func prefixes(key string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, p := range strings.Split(env(key, ""), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			pfx, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out = append(out, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
