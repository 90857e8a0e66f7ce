package ssh

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"k8s.io/client-go/util/homedir"
)

// DefaultKnownHostsPath returns the user known_hosts file.
func DefaultKnownHostsPath() string {
	return filepath.Join(homedir.HomeDir(), ".ssh", "known_hosts")
}

// ExpandHome expands a leading "~/" to the user home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homedir.HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homedir.HomeDir(), path[2:])
	}
	return path
}

// LoadPrivateKey reads a PEM private key and checks that it can be parsed.
func LoadPrivateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}

	if _, err := ssh.ParsePrivateKey(data); err != nil {
		return nil, fmt.Errorf("could not parse private key %s: %w", path, err)
	}

	return data, nil
}
