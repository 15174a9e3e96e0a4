package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vitals/internal/vault"
	"vitals/pkg/logging"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds token exchange requests.
const DefaultHTTPTimeout = 30 * time.Second

// maxTokenResponseBytes caps how much of a token response is read.
const maxTokenResponseBytes = 1 << 20

// Exchanger trades an authorization code for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, code string) (*oauth2.Token, error)

// Exchange implements Exchanger.
func (f ExchangerFunc) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f(ctx, code)
}

// tokenRequest is the JSON body posted to the token endpoint.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// tokenResponse covers both the success and the error shapes of the provider.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// CodeExchanger exchanges codes at a token endpoint using a client credential.
// Redirects are never followed: the exchange must be answered by the endpoint itself.
type CodeExchanger struct {
	tokenURL   string
	credential vault.Credential
	httpClient *http.Client
}

// NewCodeExchanger creates a CodeExchanger. A nil httpClient gets a default
// client with DefaultHTTPTimeout.
func NewCodeExchanger(tokenURL string, credential vault.Credential, httpClient *http.Client) *CodeExchanger {
	var client http.Client
	if httpClient != nil {
		client = *httpClient
	} else {
		client.Timeout = DefaultHTTPTimeout
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &CodeExchanger{
		tokenURL:   tokenURL,
		credential: credential,
		httpClient: &client,
	}
}

// Exchange implements Exchanger.
func (e *CodeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	body, err := json.Marshal(tokenRequest{
		ClientID:     e.credential.ClientID,
		ClientSecret: e.credential.ClientSecret,
		Code:         code,
	})
	if err != nil {
		return nil, &TokenExchangeError{Reason: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TokenExchangeError{Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Debug("OAuth", "Token endpoint returned status %d", resp.StatusCode)
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("malformed token response: %v", err)}
	}

	if tr.AccessToken == "" {
		reason := "no access token in response"
		if tr.Error != "" {
			reason = tr.Error
			if tr.ErrorDescription != "" {
				reason += ": " + tr.ErrorDescription
			}
		}
		return nil, &TokenExchangeError{Reason: reason}
	}

	token := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	return token.WithExtra(map[string]interface{}{"scope": tr.Scope}), nil
}
