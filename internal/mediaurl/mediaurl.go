package mediaurl

import "strings"

const PathPrefix = "/media/"

// Asset builds the externally servable URL for a stored asset reference.
func Asset(baseURL, ref string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	ref = strings.TrimLeft(ref, "/")
	if baseURL == "" {
		return PathPrefix + ref
	}
	return baseURL + PathPrefix + ref
}
