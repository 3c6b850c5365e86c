package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mattjoyce/ordergate/internal/auth"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks a fully-defaulted configuration.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(validLogLevels, strings.ToLower(cfg.Service.LogLevel)) {
		errs = append(errs, fmt.Errorf("service.log_level must be one of: %s (got %q)", strings.Join(validLogLevels, ", "), cfg.Service.LogLevel))
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat))
	}

	if cfg.State.Path == "" {
		errs = append(errs, errors.New("state.path is required"))
	}
	if cfg.State.SnapshotInterval < 0 {
		errs = append(errs, errors.New("state.snapshot_interval must not be negative"))
	}
	if err := unresolved("state.encryption_key", cfg.State.EncryptionKey); err != nil {
		errs = append(errs, err)
	}

	if cfg.Dispatch.MinInterval < 0 {
		errs = append(errs, errors.New("dispatch.min_interval must not be negative"))
	}
	if cfg.Dispatch.LogDir == "" {
		errs = append(errs, errors.New("dispatch.log_dir is required"))
	}

	errs = append(errs, validateVenue(cfg.Venue)...)
	errs = append(errs, validateAPI(cfg.API)...)
	errs = append(errs, validateSchedules(cfg.Schedules)...)
	errs = append(errs, validateWebhooks(cfg.Webhooks)...)

	return errors.Join(errs...)
}

func validateVenue(v VenueConfig) []error {
	var errs []error
	switch v.Kind {
	case VenuePaper:
	case VenueAlpaca:
		for field, val := range map[string]string{"venue.api_key": v.APIKey, "venue.api_secret": v.APISecret} {
			if val == "" {
				errs = append(errs, fmt.Errorf("%s is required for the alpaca venue", field))
			} else if err := unresolved(field, val); err != nil {
				errs = append(errs, err)
			}
		}
		if v.BaseURL != "" {
			if u, err := url.Parse(v.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Errorf("venue.base_url %q is not an absolute URL", v.BaseURL))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("venue.kind must be %q or %q (got %q)", VenuePaper, VenueAlpaca, v.Kind))
	}
	if v.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("venue.requests_per_second must not be negative"))
	}
	return errs
}

func validateAPI(a APIConfig) []error {
	if !a.Enabled {
		return nil
	}
	var errs []error
	if _, _, err := net.SplitHostPort(a.Listen); err != nil {
		errs = append(errs, fmt.Errorf("api.listen %q: %w", a.Listen, err))
	}
	if err := unresolved("api.auth.api_key", a.Auth.APIKey); err != nil {
		errs = append(errs, err)
	}
	if a.Auth.APIKey == "" && len(a.Auth.Tokens) == 0 {
		errs = append(errs, errors.New("api.auth requires api_key or at least one token when the API is enabled"))
	}
	for i, tok := range a.Auth.Tokens {
		field := fmt.Sprintf("api.auth.tokens[%d].token", i)
		if tok.Token == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		} else if err := unresolved(field, tok.Token); err != nil {
			errs = append(errs, err)
		}
		if len(tok.Scopes) == 0 {
			errs = append(errs, fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i))
		}
		for _, scope := range tok.Scopes {
			if !auth.KnownScope(scope) {
				errs = append(errs, fmt.Errorf("api.auth.tokens[%d]: unknown scope %q", i, scope))
			}
		}
	}
	return errs
}

func validateSchedules(schedules []ScheduleConfig) []error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range schedules {
		field := fmt.Sprintf("schedules[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", field))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate schedule name %q", field, s.Name))
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Queue) == "" {
			errs = append(errs, fmt.Errorf("%s.queue is required", field))
		}
		switch {
		case s.Every > 0 && s.At != "":
			errs = append(errs, fmt.Errorf("%s: set only one of every and at", field))
		case s.Every < 0:
			errs = append(errs, fmt.Errorf("%s.every must be positive", field))
		case s.Every == 0 && s.At == "":
			errs = append(errs, fmt.Errorf("%s: one of every or at is required", field))
		case s.At != "":
			if _, err := time.Parse("15:04", s.At); err != nil {
				errs = append(errs, fmt.Errorf("%s.at %q must be HH:MM", field, s.At))
			}
		}
		if s.Jitter < 0 {
			errs = append(errs, fmt.Errorf("%s.jitter must not be negative", field))
		}
	}
	return errs
}

func validateWebhooks(w *WebhooksConfig) []error {
	if w == nil {
		return nil
	}
	var errs []error
	if _, _, err := net.SplitHostPort(w.Listen); err != nil {
		errs = append(errs, fmt.Errorf("webhooks.listen %q: %w", w.Listen, err))
	}
	if len(w.Endpoints) == 0 {
		errs = append(errs, errors.New("webhooks.endpoints must be non-empty"))
	}
	paths := make(map[string]bool)
	for i, ep := range w.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if !strings.HasPrefix(ep.Path, "/") {
			errs = append(errs, fmt.Errorf("%s.path %q must start with /", field, ep.Path))
		} else if paths[ep.Path] {
			errs = append(errs, fmt.Errorf("%s: duplicate path %q", field, ep.Path))
		}
		paths[ep.Path] = true
		if strings.TrimSpace(ep.Queue) == "" {
			errs = append(errs, fmt.Errorf("%s.queue is required", field))
		}
		if ep.Secret == "" {
			errs = append(errs, fmt.Errorf("%s.secret is required", field))
		} else if err := unresolved(field+".secret", ep.Secret); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
