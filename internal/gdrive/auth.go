package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
)

const (
	ScopeDrive         = "https://www.googleapis.com/auth/drive"
	ScopeDriveReadonly = "https://www.googleapis.com/auth/drive.readonly"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// serviceAccountKey is the JSON key file issued for a service account.
type serviceAccountKey struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
	ProjectID    string `json:"project_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource mints and caches OAuth2 access tokens. Implementations must be
// safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceAccountTokenSource exchanges a signed JWT assertion for an access
// token, following the service-account authorization flow. Tokens are cached
// until shortly before expiry.
type ServiceAccountTokenSource struct {
	key     *serviceAccountKey
	scopes  []string
	subject string
	client  *req.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceAccountTokenSource loads a service account key file. subject is
// an optional user to impersonate, empty for none.
func NewServiceAccountTokenSource(keyFile, subject string, scopes ...string) (*ServiceAccountTokenSource, error) {
	if keyFile == "" {
		return nil, ErrNoCredentials
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}

	var key serviceAccountKey
	if err := jsonUnmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, ErrNoCredentials
	}
	if key.TokenURI == "" {
		key.TokenURI = "https://oauth2.googleapis.com/token"
	}

	if len(scopes) == 0 {
		scopes = []string{ScopeDrive, ScopeDriveReadonly}
	}

	client := req.C().
		SetTimeout(30 * time.Second).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &ServiceAccountTokenSource{
		key:     &key,
		scopes:  scopes,
		subject: subject,
		client:  client,
	}, nil
}

// Token returns a cached access token, refreshing it when it is about to expire.
func (ts *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expires) {
		return ts.token, nil
	}

	assertion, err := ts.signAssertion()
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	var tok tokenResponse
	resp, err := ts.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": jwtBearerGrant,
			"assertion":  assertion,
		}).
		SetSuccessResult(&tok).
		Post(ts.key.TokenURI)

	if err := handleAPIError(resp, err, "token exchange"); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	ts.token = tok.AccessToken
	// refresh one minute early to avoid using a token at the edge of expiry
	ts.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return ts.token, nil
}

func (ts *ServiceAccountTokenSource) signAssertion() (string, error) {
	pk, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(ts.key.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   ts.key.ClientEmail,
		"scope": strings.Join(ts.scopes, " "),
		"aud":   ts.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if ts.subject != "" {
		claims["sub"] = ts.subject
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ts.key.PrivateKeyID
	return token.SignedString(pk)
}

// StaticTokenSource returns a fixed token, useful for tests.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}
