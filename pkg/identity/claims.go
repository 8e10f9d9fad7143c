package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeClaims extracts the claims object from a JWT without verifying the
// signature; signature verification is the issuer's introspection concern.
func decodeClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding token payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parsing token claims: %w", err)
	}

	return claims, nil
}
