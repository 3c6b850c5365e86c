package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value using a dot-notation path such as
// "dispatch.min_interval". Secrets are redacted.
func (c *Config) GetPath(path string) (any, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return getValue(m, path)
}

func getValue(m map[string]any, path string) (any, error) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}
		val, exists := node[part]
		if !exists {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
		current = val
	}
	return current, nil
}

const redacted = "[redacted]"

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return s
		}
		return redacted
	}
	out.State.EncryptionKey = mask(c.State.EncryptionKey)
	out.Venue.APIKey = mask(c.Venue.APIKey)
	out.Venue.APISecret = mask(c.Venue.APISecret)
	out.API.Auth.APIKey = mask(c.API.Auth.APIKey)
	out.Security.PasswordHash = mask(c.Security.PasswordHash)
	out.API.Auth.Tokens = make([]APIToken, len(c.API.Auth.Tokens))
	for i, tok := range c.API.Auth.Tokens {
		out.API.Auth.Tokens[i] = APIToken{Token: mask(tok.Token), Scopes: tok.Scopes}
	}
	if c.Webhooks != nil {
		wh := *c.Webhooks
		wh.Endpoints = make([]WebhookEndpoint, len(c.Webhooks.Endpoints))
		for i, ep := range c.Webhooks.Endpoints {
			ep.Secret = mask(ep.Secret)
			wh.Endpoints[i] = ep
		}
		out.Webhooks = &wh
	}
	return &out
}
