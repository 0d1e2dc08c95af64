package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/scy"

	"github.com/strokeworks/vectorflow/internal/log"
)

// ResolveAPIKey loads a provider API key from a secret resource URL
// (any scheme the secret service supports, e.g. file, gcp secret manager).
// An optional encryption key such as "blowfish://default" decrypts
// encrypted resources.
func ResolveAPIKey(ctx context.Context, sourceURL, encryptionKey string) (string, error) {
	resource := scy.NewResource(nil, sourceURL, encryptionKey)
	secrets := scy.New()
	secret, err := secrets.Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load api key from %s: %w", sourceURL, err)
	}
	value := strings.TrimSpace(secret.String())
	if value == "" {
		return "", fmt.Errorf("api key resource %s resolved to an empty value", sourceURL)
	}
	log.GetLogger().WithField("source", sourceURL).
		WithField("apiKey", RedactKey(value)).
		Debug("resolved provider api key")
	return value, nil
}
