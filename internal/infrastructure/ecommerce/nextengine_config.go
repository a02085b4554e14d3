package ecommerce

import (
	"errors"
	"strings"
	"time"
)

// NextEngineConfig holds configuration for the Next Engine platform
type NextEngineConfig struct {
	// ClientID is the application client id
	ClientID string
	// ClientSecret is the application client secret
	ClientSecret string
	// RedirectURI is the registered callback URL; the correlation token is appended as a query parameter
	RedirectURI string
	// AuthBaseURL hosts the sign-in page
	AuthBaseURL string
	// APIBaseURL hosts api_neauth and the data APIs
	APIBaseURL string
	// CorrelationQueryKey is the redirect URI parameter carrying the correlation token
	CorrelationQueryKey string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// PageSize is the limit used for paged searches
	PageSize int
	// MaxOrderPages caps pagination when summarizing orders
	MaxOrderPages int
}

const (
	NextEngineDefaultAuthBaseURL         = "https://base.next-engine.org"
	NextEngineDefaultAPIBaseURL          = "https://api.next-engine.org"
	NextEngineDefaultCorrelationQueryKey = "ct"

	// nextEngineDateLayout is the zone-less layout of every Next Engine timestamp (JST)
	nextEngineDateLayout = "2006-01-02 15:04:05"
)

// Errors for Next Engine configuration
var (
	ErrNextEngineConfigMissingClientID     = errors.New("nextengine: client id is required")
	ErrNextEngineConfigMissingClientSecret = errors.New("nextengine: client secret is required")
	ErrNextEngineConfigMissingRedirectURI  = errors.New("nextengine: redirect URI is required")
)

// nextEngineLocation is Asia/Tokyo, or a fixed +09:00 zone when tzdata is unavailable
var nextEngineLocation = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// NewNextEngineConfig creates a new Next Engine configuration with defaults
func NewNextEngineConfig(clientID, clientSecret, redirectURI string) *NextEngineConfig {
	return &NextEngineConfig{
		ClientID:            clientID,
		ClientSecret:        clientSecret,
		RedirectURI:         redirectURI,
		AuthBaseURL:         NextEngineDefaultAuthBaseURL,
		APIBaseURL:          NextEngineDefaultAPIBaseURL,
		CorrelationQueryKey: NextEngineDefaultCorrelationQueryKey,
		TimeoutSeconds:      30,
		PageSize:            1000,
		MaxOrderPages:       50,
	}
}

// Validate validates the configuration and fills defaults
func (c *NextEngineConfig) Validate() error {
	if c.ClientID == "" {
		return ErrNextEngineConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrNextEngineConfigMissingClientSecret
	}
	if c.RedirectURI == "" {
		return ErrNextEngineConfigMissingRedirectURI
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = NextEngineDefaultAuthBaseURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = NextEngineDefaultAPIBaseURL
	}
	c.AuthBaseURL = strings.TrimRight(c.AuthBaseURL, "/")
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.CorrelationQueryKey == "" {
		c.CorrelationQueryKey = NextEngineDefaultCorrelationQueryKey
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.MaxOrderPages <= 0 {
		c.MaxOrderPages = 50
	}
	return nil
}
