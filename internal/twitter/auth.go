package twitter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/core"
)

// Default OAuth 1.0a endpoints for the PIN-based (out-of-band) flow.
var defaultOAuthEndpoint = oauth1.Endpoint{
	RequestTokenURL: "https://api.twitter.com/oauth/request_token",
	AuthorizeURL:    "https://api.twitter.com/oauth/authorize",
	AccessTokenURL:  "https://api.twitter.com/oauth/access_token",
}

// TokenCache persists the long-lived access token pair between runs.
type TokenCache interface {
	Credentials(ctx context.Context) (*core.Credentials, error)
	SaveCredentials(ctx context.Context, creds *core.Credentials) error
}

// Prompter collects the operator's verification PIN. The flow is
// synchronous and blocking, which is acceptable for a CLI-bound tool.
type Prompter interface {
	Prompt(message string) (string, error)
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(message string) (string, error)

// Prompt implements Prompter.
func (f PromptFunc) Prompt(message string) (string, error) { return f(message) }

// StdinPrompter prompts on out and reads one line from in.
func StdinPrompter(in io.Reader, out io.Writer) Prompter {
	reader := bufio.NewReader(in)
	return PromptFunc(func(message string) (string, error) {
		if _, err := fmt.Fprint(out, message); err != nil {
			return "", err
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read verification code: %w", err)
		}
		return strings.TrimSpace(line), nil
	})
}

// Authenticator produces an OAuth1-signed HTTP client. Cached access
// credentials are used when present; otherwise it runs the three-legged
// PIN flow once and persists the result.
type Authenticator struct {
	ConsumerKey    string
	ConsumerSecret string
	Cache          TokenCache
	Prompter       Prompter
	Endpoint       oauth1.Endpoint
	Logger         *logging.Logger
	// Out receives the authorization URL shown to the operator.
	Out io.Writer
}

func (a *Authenticator) config() *oauth1.Config {
	endpoint := a.Endpoint
	if endpoint.RequestTokenURL == "" {
		endpoint = defaultOAuthEndpoint
	}
	return &oauth1.Config{
		ConsumerKey:    a.ConsumerKey,
		ConsumerSecret: a.ConsumerSecret,
		CallbackURL:    "oob",
		Endpoint:       endpoint,
	}
}

// HTTPClient returns a signing HTTP client for the authenticated user,
// acquiring credentials first if needed.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, err
	}
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	return a.config().Client(ctx, token), nil
}

// credentials loads the cached token pair or acquires a fresh one.
func (a *Authenticator) credentials(ctx context.Context) (*core.Credentials, error) {
	if strings.TrimSpace(a.ConsumerKey) == "" || strings.TrimSpace(a.ConsumerSecret) == "" {
		return nil, ErrMissingCredentials
	}

	if a.Cache != nil {
		cached, err := a.Cache.Credentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cached credentials: %w", err)
		}
		if cached != nil {
			if a.Logger != nil {
				a.Logger.Debug("using cached access credentials")
			}
			return cached, nil
		}
	}

	return a.authorize(ctx)
}

// authorize runs the three-legged exchange: request token, operator
// authorization via PIN, access token.
func (a *Authenticator) authorize(ctx context.Context) (*core.Credentials, error) {
	if a.Prompter == nil {
		return nil, &AuthError{Stage: "authorize", Err: fmt.Errorf("no prompter configured for interactive authorization")}
	}

	cfg := a.config()

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		// Almost always bad consumer credentials; treated as a fatal
		// configuration problem by the CLI.
		return nil, &AuthError{Stage: "request_token", Err: err}
	}

	authorizationURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return nil, &AuthError{Stage: "authorize", Err: err}
	}

	out := a.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "\nAuthorize this application by visiting:\n\n  %s\n\n", authorizationURL.String())

	verifier, err := a.Prompter.Prompt("Enter the PIN from the website: ")
	if err != nil {
		return nil, &AuthError{Stage: "authorize", Err: err}
	}
	if verifier == "" {
		return nil, &AuthError{Stage: "authorize", Err: fmt.Errorf("empty verification code")}
	}

	accessToken, accessSecret, err := cfg.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return nil, &AuthError{Stage: "access_token", Err: err}
	}

	creds := &core.Credentials{AccessToken: accessToken, AccessSecret: accessSecret}
	if a.Cache != nil {
		if err := a.Cache.SaveCredentials(ctx, creds); err != nil {
			if a.Logger != nil {
				a.Logger.Warn("failed to cache access credentials", zap.Error(err))
			}
		} else if a.Logger != nil {
			a.Logger.Debug("access credentials cached for future runs")
		}
	}

	return creds, nil
}
