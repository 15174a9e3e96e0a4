package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the configuration and returns a ConfigurationErrorCollection
// listing every problem found, or nil.
func Validate(c Config) error {
	var errs ConfigurationErrorCollection

	addErr := func(field, message string, suggestions ...string) {
		errs.Add(ConfigurationError{
			FileName:    configFileName,
			ErrorType:   "validation",
			Field:       field,
			Message:     message,
			Suggestions: suggestions,
		})
	}

	if err := validateHTTPURL(c.Prometheus.URL); err != nil {
		addErr("prometheus.url", err.Error(), "set prometheus.url or VITALS_PROMETHEUS_URL, e.g. http://localhost:9090")
	}
	if c.Prometheus.Timeout <= 0 {
		addErr("prometheus.timeout", "must be positive")
	}
	if c.Prometheus.MaxAttempts < 1 {
		addErr("prometheus.maxAttempts", "must be at least 1")
	}
	if c.Prometheus.BaseDelay < 0 {
		addErr("prometheus.baseDelay", "must not be negative")
	}

	if err := validateHTTPURL(c.OAuth.AuthorizeURL); err != nil {
		addErr("oauth.authorizeURL", err.Error())
	}
	if err := validateHTTPURL(c.OAuth.TokenURL); err != nil {
		addErr("oauth.tokenURL", err.Error())
	}
	if err := validateHTTPURL(c.OAuth.APIURL); err != nil {
		addErr("oauth.apiURL", err.Error())
	}
	if len(c.OAuth.Scopes) == 0 {
		addErr("oauth.scopes", "must list at least one scope")
	}
	if ip := net.ParseIP(c.OAuth.CallbackHost); ip == nil || !ip.IsLoopback() {
		addErr("oauth.callbackHost", fmt.Sprintf("%q is not a loopback address", c.OAuth.CallbackHost), "use 127.0.0.1")
	}
	if c.OAuth.CallbackPort < 0 || c.OAuth.CallbackPort > 65535 {
		addErr("oauth.callbackPort", fmt.Sprintf("%d is out of range", c.OAuth.CallbackPort))
	}
	if c.OAuth.FlowTimeout <= 0 || c.OAuth.FlowTimeout > DefaultFlowTimeout {
		addErr("oauth.flowTimeout", fmt.Sprintf("must be positive and at most %s, got %s", DefaultFlowTimeout, c.OAuth.FlowTimeout))
	}

	if c.Telemetry.URL != "" {
		if err := validateHTTPURL(c.Telemetry.URL); err != nil {
			addErr("telemetry.url", err.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
