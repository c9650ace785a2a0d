// Command secret-check reports the configured encryption and state-signing
// key counts without touching any stored data. Deploy pipelines run it to
// fail fast on missing secrets.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/bridgeworks/espbridge/internal/secrets"
)

func main() {
	source := &secrets.Source{}
	failed := false

	tokenKeys, err := source.TokenKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", secrets.EnvTokenSecrets, err)
		failed = true
	} else {
		fmt.Printf("%s: %d key(s), newest encrypts\n", secrets.EnvTokenSecrets, len(tokenKeys))
	}

	stateKeys, err := source.OAuthStateKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", secrets.EnvOAuthStateSecrets, err)
		failed = true
	} else {
		fmt.Printf("%s: %d key(s), newest signs\n", secrets.EnvOAuthStateSecrets, len(stateKeys))
	}

	if failed {
		os.Exit(1)
	}
}
