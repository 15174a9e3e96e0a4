package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vitals/pkg/logging"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// UserAgent identifies vitals to the GitHub API.
const UserAgent = "vitals-cli"

// UserProfile is the cached identity of the signed-in user.
type UserProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName returns the name, falling back to the login.
func (u *UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// ProfileFetcher loads the profile belonging to an access token. Any error
// means the token cannot be trusted.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error)
}

// GitHubProfiles fetches profiles from the GitHub REST API.
type GitHubProfiles struct {
	baseURL   *url.URL
	transport http.RoundTripper
}

// NewGitHubProfiles creates a fetcher for the API rooted at apiURL. A nil
// transport uses http.DefaultTransport.
func NewGitHubProfiles(apiURL string, transport http.RoundTripper) (*GitHubProfiles, error) {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	return &GitHubProfiles{baseURL: u, transport: transport}, nil
}

func (g *GitHubProfiles) client(ctx context.Context, accessToken string) *github.Client {
	if g.transport != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: g.transport})
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	client := github.NewClient(httpClient)
	client.BaseURL = g.baseURL
	client.UserAgent = UserAgent
	return client
}

// FetchProfile implements ProfileFetcher. When the public email is hidden the
// primary verified address from the emails endpoint is used instead.
func (g *GitHubProfiles) FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	client := g.client(ctx, accessToken)

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub user: %w", err)
	}

	profile := &UserProfile{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		AvatarURL: user.GetAvatarURL(),
	}

	if profile.Email == "" {
		email, err := primaryEmail(ctx, client)
		if err != nil {
			logging.Debug("Session", "Could not read private email for %s: %v", profile.Login, err)
		} else {
			profile.Email = email
		}
	}

	return profile, nil
}

func primaryEmail(ctx context.Context, client *github.Client) (string, error) {
	emails, _, err := client.Users.ListEmails(ctx, nil)
	if err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	return "", nil
}
