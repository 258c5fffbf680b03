package instance

import (
	"os"

	"github.com/angelmondragon/fruteria-pos/pkg/env"
)

// GetID returns the identifier of this till server, used to tag logs.
func GetID() string {
	if id := env.First("", "FRUTERIA_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
