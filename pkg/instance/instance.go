package instance

import (
	"os"
	"strings"
)

const fallbackID = "local"

// idSources are consulted in order; the platform dyno name covers Heroku-style
// hosts where the hostname is a random container id.
var idSources = []string{"GIGFLOW_INSTANCE_ID", "DYNO"}

// GetID identifies the running process in logs and lease holders. It never
// returns an empty string.
func GetID() string {
	for _, key := range idSources {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
