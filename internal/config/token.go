package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// TokenEnvVar is the environment variable consulted for the account token.
const TokenEnvVar = "DISCORD_TOKEN"

// ResolveToken returns the account token from the first available source:
// the --token flag value, the DISCORD_TOKEN environment variable, or a .env
// file in the current directory.
func ResolveToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(TokenEnvVar); v != "" {
		return v, nil
	}
	if v, err := tokenFromEnvFile(".env"); err == nil && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no token found: pass --token, set %s, or add it to .env", TokenEnvVar)
}

func tokenFromEnvFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	prefix := TokenEnvVar + "="
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		v := strings.TrimPrefix(line, prefix)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		return v, nil
	}
	return "", sc.Err()
}
