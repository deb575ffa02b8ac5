package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SwaggerHubConfig locates an API definition on SwaggerHub.
type SwaggerHubConfig struct {
	BaseURL    string
	Owner      string
	API        string
	APIKey     string
	AuthHeader string
	// Version skips the default version lookup when set.
	Version  string
	Resolved bool
	Flatten  bool
}

// swaggerHubFromEnv reads SH_* variables.
func swaggerHubFromEnv(getenv func(string) string) (SwaggerHubConfig, error) {
	c := SwaggerHubConfig{
		BaseURL:    getenv("SH_BASE_URL"),
		Owner:      getenv("SH_OWNER"),
		API:        getenv("SH_API"),
		APIKey:     getenv("SH_API_KEY"),
		AuthHeader: getenv("SH_AUTH_HEADER"),
		Version:    getenv("SH_VERSION"),
		Resolved:   getenv("SH_RESOLVED") == "true",
		Flatten:    getenv("SH_FLATTEN") == "true",
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.swaggerhub.com"
	}
	if c.AuthHeader == "" {
		c.AuthHeader = "Authorization"
	}
	if c.Owner == "" || c.API == "" || c.APIKey == "" {
		return c, errors.New("missing SH_OWNER, SH_API, or SH_API_KEY")
	}
	return c, nil
}

// fetchOAS downloads the YAML of c.Version, or of the API's default version
// when c.Version is empty.
func fetchOAS(ctx context.Context, hc *http.Client, c SwaggerHubConfig) (string, []byte, error) {
	owner, api := url.PathEscape(c.Owner), url.PathEscape(c.API)

	version := c.Version
	if version == "" {
		raw, err := swaggerHubGet(ctx, hc, c, fmt.Sprintf("/apis/%s/%s/settings/default", owner, api))
		if err != nil {
			return "", nil, fmt.Errorf("get default version: %w", err)
		}
		version = parseDefaultVersion(raw)
		if version == "" {
			return "", nil, errors.New("empty default version from SwaggerHub")
		}
	}

	path := fmt.Sprintf("/apis/%s/%s/%s/swagger.yaml?resolved=%t&flatten=%t", owner, api, url.PathEscape(version), c.Resolved, c.Flatten)
	data, err := swaggerHubGet(ctx, hc, c, path)
	if err != nil {
		return "", nil, fmt.Errorf("download definition %s: %w", version, err)
	}
	return version, data, nil
}

func swaggerHubGet(ctx context.Context, hc *http.Client, c SwaggerHubConfig, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.AuthHeader, c.APIKey)
	slog.DebugContext(ctx, "swaggerhub request", "url", req.URL.String())
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return data, nil
}

// parseDefaultVersion accepts the shapes SwaggerHub has used for the default
// version setting: a bare or JSON string, or an object with one of several
// keys.
func parseDefaultVersion(raw []byte) string {
	var v any
	version := ""
	if err := json.Unmarshal(raw, &v); err != nil {
		version = string(raw)
	} else {
		switch t := v.(type) {
		case string:
			version = t
		case map[string]any:
			for _, k := range []string{"version", "default", "defaultVersion", "value"} {
				if s, ok := t[k].(string); ok {
					version = s
					break
				}
			}
		}
	}
	version = strings.TrimSpace(version)
	if len(version) >= 2 && (version[0] == '"' || version[0] == '\'') && version[len(version)-1] == version[0] {
		version = version[1 : len(version)-1]
	}
	return version
}
