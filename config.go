package offers

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TransportKind selects the HTTP backend used by the client. The backend is
// chosen once at construction; all backends expose identical semantics.
type TransportKind string

const (
	// TransportNetHTTP uses the standard library's http.Client. Default.
	TransportNetHTTP TransportKind = "http"
	// TransportResty uses go-resty.
	TransportResty TransportKind = "resty"
	// TransportFastHTTP uses valyala/fasthttp.
	TransportFastHTTP TransportKind = "fasthttp"
)

const envPrefix = "OFFERS_API_"

// Settings holds client configuration. Values are read once at construction.
type Settings struct {
	// RefreshToken is the long-lived credential exchanged for access tokens.
	// Required. Never logged.
	RefreshToken string
	// BaseURL is the root of the offers service.
	BaseURL string
	// Timeout bounds every network attempt, including token exchanges.
	Timeout time.Duration
	// Transport selects the HTTP backend.
	Transport TransportKind
	// OffersCacheTTL is the time-to-live for cached offer listings.
	OffersCacheTTL time.Duration
	// TokenCacheDir is the directory where access tokens are persisted
	// across process restarts.
	TokenCacheDir string
}

// DefaultSettings returns settings with the documented defaults applied.
// RefreshToken is left empty and must be supplied by the caller or the
// environment.
func DefaultSettings() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		BaseURL:        "https://python.exercise.applifting.cz",
		Timeout:        30 * time.Second,
		Transport:      TransportNetHTTP,
		OffersCacheTTL: 60 * time.Second,
		TokenCacheDir:  filepath.Join(home, ".offers_sdk"),
	}
}

// LoadSettings builds Settings from OFFERS_API_* environment variables on top
// of the defaults. A .env file in the working directory is honored when
// present. Durations accept Go duration syntax ("30s") or plain seconds
// ("30", "30.5").
func LoadSettings() (Settings, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	s := DefaultSettings()
	if v := os.Getenv(envPrefix + "REFRESH_TOKEN"); v != "" {
		s.RefreshToken = v
	}
	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		s.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(envPrefix + "TIMEOUT"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return s, settingsError(fmt.Sprintf("invalid %sTIMEOUT: %v", envPrefix, err))
		}
		s.Timeout = d
	}
	if v := os.Getenv(envPrefix + "TRANSPORT"); v != "" {
		s.Transport = TransportKind(strings.ToLower(v))
	}
	if v := os.Getenv(envPrefix + "OFFERS_CACHE_TTL"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return s, settingsError(fmt.Sprintf("invalid %sOFFERS_CACHE_TTL: %v", envPrefix, err))
		}
		s.OffersCacheTTL = d
	}
	if v := os.Getenv(envPrefix + "TOKEN_CACHE_DIR"); v != "" {
		s.TokenCacheDir = v
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks that required settings are present and well-formed.
func (s Settings) Validate() error {
	var problems []string

	if strings.TrimSpace(s.RefreshToken) == "" {
		problems = append(problems, "refresh token is required")
	}
	if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "base URL must be an absolute URL")
	}
	if s.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if s.OffersCacheTTL <= 0 {
		problems = append(problems, "offers cache TTL must be positive")
	}
	switch s.Transport {
	case TransportNetHTTP, TransportResty, TransportFastHTTP:
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", s.Transport))
	}

	if len(problems) > 0 {
		return settingsError(strings.Join(problems, "; "))
	}
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor seconds", v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func settingsError(msg string) *Error {
	return &Error{
		Kind:      KindValidation,
		Message:   msg,
		Timestamp: time.Now(),
	}
}
