package instance

import (
	"os"

	"github.com/angelmondragon/ledgersync/pkg/env"
)

// GetID returns the process instance identifier used in logs and lock ownership.
func GetID() string {
	if id := env.First("LEDGERSYNC_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "ledgersync-0"
}
