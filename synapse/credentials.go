package synapse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AuthTokenEnv overrides the default credentials file
	AuthTokenEnv = "SYNAPSE_AUTH_TOKEN"

	configFileName = ".synapseConfig"
)

// DefaultConfigPath is ~/.synapseConfig
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

// ReadAuthToken returns the personal access token from the [authentication]
// section of the INI credentials file at path. Without a path the
// environment is tried before ~/.synapseConfig.
func ReadAuthToken(path string) (string, error) {
	if path == "" {
		if token := strings.TrimSpace(os.Getenv(AuthTokenEnv)); token != "" {
			return token, nil
		}
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoCredentials, path)
		}
		return "", fmt.Errorf("failed to read synapse config %s: %w", path, err)
	}

	token := strings.TrimSpace(v.GetString("authentication.authtoken"))
	if token == "" {
		return "", fmt.Errorf("%w: no authtoken in [authentication] of %s", ErrNoCredentials, path)
	}
	return token, nil
}
