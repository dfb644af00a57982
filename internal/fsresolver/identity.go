package fsresolver

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// machineIDPaths lists platform-portable locations to probe for a
// stable machine identifier, in priority order.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// DefaultFilesystemID hashes the first readable machine-id file found,
// giving a stable per-host filesystem identifier. Bind mounts must be
// configured with the host's identifier (not probed automatically) so
// that host-side and sandbox-side agents converge on the same object
// identity for the same underlying file — misconfiguration here
// isolates objects rather than corrupting them.
func DefaultFilesystemID() string {
	for _, p := range machineIDPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(string(data))
		if trimmed == "" {
			continue
		}
		sum := sha256.Sum256([]byte(trimmed))
		return hex.EncodeToString(sum[:])
	}
	return "unknown-filesystem"
}
