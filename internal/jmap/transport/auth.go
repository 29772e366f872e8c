package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/common/security"
)

// AuthMethod selects the credential strategy applied to each request.
type AuthMethod string

const (
	// AuthBasic sends username:password as an Authorization header.
	AuthBasic AuthMethod = "basic"

	// AuthBearer sends a static access token.
	AuthBearer AuthMethod = "bearer"

	// AuthOAuth2 obtains tokens from an external token source; refresh
	// is that collaborator's concern, not ours.
	AuthOAuth2 AuthMethod = "oauth2"
)

// Credentials holds one of the three credential strategies. Exactly the
// fields for the chosen Method need to be set.
type Credentials struct {
	Method AuthMethod

	// Basic
	Username string
	Password string

	// Bearer
	AccessToken string

	// OAuth2
	TokenSource oauth2.TokenSource
}

// authorize applies the configured credential strategy to the request.
func (c *Client) authorize(req *http.Request) error {
	switch c.creds.Method {
	case AuthBasic:
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	case AuthBearer:
		c.warnIfExpired(c.creds.AccessToken)
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	case AuthOAuth2:
		if c.creds.TokenSource == nil {
			return fmt.Errorf("oauth2 auth selected but no token source configured")
		}
		token, err := c.creds.TokenSource.Token()
		if err != nil {
			return fmt.Errorf("failed to obtain oauth2 token: %w", err)
		}
		token.SetAuthHeader(req)
	default:
		return fmt.Errorf("unknown auth method: %s", c.creds.Method)
	}
	return nil
}

// warnIfExpired parses a bearer token without verification and logs a
// warning when its exp claim has passed. Verification is the server's
// job; this only improves the diagnosis of imminent 401s.
func (c *Client) warnIfExpired(tokenString string) {
	exp, err := tokenExpiry(tokenString)
	if err != nil || exp.IsZero() {
		return // not a JWT, or no exp claim; nothing to report
	}
	if time.Now().After(exp) {
		logger.LogWarn(c.logger, "Access token appears expired",
			"token", security.MaskAccessToken(tokenString),
			"expiredAt", exp.Format(time.RFC3339))
	}
}

// tokenExpiry extracts the exp claim from a JWT access token without
// validating the signature.
func tokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JWT: %w", err)
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// describeAuth returns a log-safe description of the configured
// credentials.
func (c *Client) describeAuth() []any {
	switch c.creds.Method {
	case AuthBasic:
		return []any{"method", "basic",
			"username", security.MaskUsername(c.creds.Username),
			"password", security.MaskPassword(c.creds.Password)}
	case AuthBearer:
		return []any{"method", "bearer", "token", security.MaskAccessToken(c.creds.AccessToken)}
	case AuthOAuth2:
		return []any{"method", "oauth2"}
	default:
		return []any{"method", string(c.creds.Method)}
	}
}
