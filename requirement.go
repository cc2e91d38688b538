package x402mcp

import (
	"net/url"
	"path"
	"strings"
)

// ResourceURL joins baseURL with "/tools/<name>" per spec §3. If
// baseURL is empty, the path alone is returned.
func ResourceURL(baseURL, name string) string {
	toolPath := "/tools/" + name
	if baseURL == "" {
		return toolPath
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + toolPath
	}
	parsed.Path = path.Join(parsed.Path, toolPath)
	return parsed.String()
}
