package sharepoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/charmbracelet/log"

	"github.com/louiss0/access-sharepoint-migrator/config"
)

const (
	defaultAuthorityHost = "https://login.microsoftonline.com"
	graphScope           = "https://graph.microsoft.com/.default"
)

// TokenProvider returns a bearer token for Microsoft Graph.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns token.
func StaticToken(token string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

type msalTokenProvider struct {
	client confidential.Client
	scopes []string
}

// NewMSALTokenProvider builds a client-credentials provider for the app registration in cfg.
// Tokens are served from the MSAL in-memory cache until they expire.
func NewMSALTokenProvider(cfg config.SharePoint) (TokenProvider, error) {
	cred, err := confidential.NewCredFromSecret(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid client secret: %v", ErrAuthentication, err)
	}

	host := cfg.AuthorityHost
	if host == "" {
		host = defaultAuthorityHost
	}
	authority := strings.TrimRight(host, "/") + "/" + cfg.TenantID

	client, err := confidential.New(authority, cfg.ClientID, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	return &msalTokenProvider{client: client, scopes: []string{scopeFor(cfg.GraphURL)}}, nil
}

func (p *msalTokenProvider) Token(ctx context.Context) (string, error) {
	result, err := p.client.AcquireTokenSilent(ctx, p.scopes)
	if err == nil {
		return result.AccessToken, nil
	}

	log.Debug("no cached token, acquiring a new one", "scopes", p.scopes)

	result, err = p.client.AcquireTokenByCredential(ctx, p.scopes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return result.AccessToken, nil
}

// scopeFor derives the .default scope from a Graph endpoint such as https://graph.microsoft.us/v1.0.
func scopeFor(graphURL string) string {
	if graphURL == "" {
		return graphScope
	}
	scheme, rest, found := strings.Cut(graphURL, "://")
	if !found {
		return graphScope
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + "/.default"
}
