package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/erp/connhub/internal/domain/connection"
)

// ShoplineConfig holds configuration for the SHOPLINE open platform
type ShoplineConfig struct {
	// AppKey is the application key from the SHOPLINE developer center
	AppKey string
	// AppSecret signs token requests and verifies callbacks
	AppSecret string
	// RedirectURI is the registered OAuth callback URL
	RedirectURI string
	// Scopes are the permissions requested on authorize
	Scopes []string
	// APIVersion is the OpenAPI version segment, e.g. v20230901
	APIVersion string
	// HostSuffix is appended to the storefront handle to form the store host
	HostSuffix string
	// BaseURL, when set, replaces https://{handle}.{HostSuffix} (sandbox and tests)
	BaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxOrderPages caps pagination when summarizing orders
	MaxOrderPages int
}

const (
	ShoplineDefaultAPIVersion = "v20230901"
	ShoplineDefaultHostSuffix = "myshopline.com"
)

// Errors for SHOPLINE configuration and input
var (
	ErrShoplineConfigMissingAppKey      = errors.New("shopline: app key is required")
	ErrShoplineConfigMissingAppSecret   = errors.New("shopline: app secret is required")
	ErrShoplineConfigMissingRedirectURI = errors.New("shopline: redirect URI is required")
	ErrShoplineMissingHandle            = fmt.Errorf("shopline: %w: storefront handle is required", connection.ErrInvalidHandle)
	ErrShoplineInvalidHandle            = fmt.Errorf("shopline: %w", connection.ErrInvalidHandle)
)

// handles become part of a host name, so only DNS-label characters are accepted
var shoplineHandlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// NewShoplineConfig creates a new SHOPLINE configuration with defaults
func NewShoplineConfig(appKey, appSecret, redirectURI string) *ShoplineConfig {
	return &ShoplineConfig{
		AppKey:         appKey,
		AppSecret:      appSecret,
		RedirectURI:    redirectURI,
		APIVersion:     ShoplineDefaultAPIVersion,
		HostSuffix:     ShoplineDefaultHostSuffix,
		TimeoutSeconds: 30,
		MaxOrderPages:  50,
	}
}

// Validate validates the configuration and fills defaults
func (c *ShoplineConfig) Validate() error {
	if c.AppKey == "" {
		return ErrShoplineConfigMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrShoplineConfigMissingAppSecret
	}
	if c.RedirectURI == "" {
		return ErrShoplineConfigMissingRedirectURI
	}
	if c.APIVersion == "" {
		c.APIVersion = ShoplineDefaultAPIVersion
	}
	if c.HostSuffix == "" {
		c.HostSuffix = ShoplineDefaultHostSuffix
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxOrderPages <= 0 {
		c.MaxOrderPages = 50
	}
	return nil
}

// normalizeHandle validates a storefront handle
func normalizeHandle(handle string) (string, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" {
		return "", ErrShoplineMissingHandle
	}
	if !shoplineHandlePattern.MatchString(handle) {
		return "", fmt.Errorf("%w: %q", ErrShoplineInvalidHandle, handle)
	}
	return handle, nil
}

// StoreBaseURL returns the base URL of a storefront's admin API
func (c *ShoplineConfig) StoreBaseURL(handle string) string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.%s", handle, c.HostSuffix)
}

// Sign computes the request signature: hex(HMAC-SHA256(secret, body + timestamp))
func (c *ShoplineConfig) Sign(body, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(c.AppSecret))
	mac.Write([]byte(body + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignQuery computes the callback signature over the sorted query parameters,
// excluding the sign parameter itself
func (c *ShoplineConfig) SignQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, k := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(k)
		builder.WriteByte('=')
		builder.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(c.AppSecret))
	mac.Write([]byte(builder.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
