package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenAudience is the audience monitored applications sign their
// registration tokens for.
const ServiceTokenAudience = "microscope"

// Service validates the RS256 service tokens sent by monitored applications.
type Service struct {
	publicKey      *rsa.PublicKey
	allowedIssuers []string
}

// NewService parses publicKeyPEM. An empty allowedIssuers accepts any issuer.
func NewService(publicKeyPEM string, allowedIssuers []string) (*Service, error) {
	pubKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return NewServiceWithKey(pubKey, allowedIssuers), nil
}

func NewServiceWithKey(publicKey *rsa.PublicKey, allowedIssuers []string) *Service {
	return &Service{
		publicKey:      publicKey,
		allowedIssuers: allowedIssuers,
	}
}

// ValidateServiceToken returns the subject of a valid token.
func (s *Service) ValidateServiceToken(tokenString string) (string, error) {
	if s.publicKey == nil {
		return "", fmt.Errorf("public key not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", domain.ErrTokenMalformed, token.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithAudience(ServiceTokenAudience), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", domain.ErrTokenInvalidSignature
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}

	if !token.Valid {
		return "", domain.ErrTokenMalformed
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrTokenMalformed
	}

	sub := getStringClaim(mapClaims, "sub")
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", domain.ErrTokenMalformed)
	}

	if len(s.allowedIssuers) > 0 && !slices.Contains(s.allowedIssuers, getStringClaim(mapClaims, "iss")) {
		return "", domain.ErrTokenIssuerNotAllowed
	}

	return sub, nil
}

func parseRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaPub, nil
}

func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

var pemHeaderRe = regexp.MustCompile(`(?i)(-----BEGIN [A-Z ]+-----)`)
var pemFooterRe = regexp.MustCompile(`(?i)(-----END [A-Z ]+-----)`)

// normalizePEM restores the line breaks of a key passed on a single line, as
// happens with environment variables.
func normalizePEM(s string) string {
	if strings.Contains(s, "\n") {
		return s
	}
	s = pemHeaderRe.ReplaceAllString(s, "$1\n")
	s = pemFooterRe.ReplaceAllString(s, "\n$1")
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, "\n", 2)
	if len(parts) != 2 {
		return s
	}
	header := parts[0]
	rest := parts[1]
	parts = strings.SplitN(rest, "\n", 2)
	if len(parts) != 2 {
		return s
	}
	body := strings.ReplaceAll(parts[0], " ", "\n")
	return header + "\n" + body + "\n" + parts[1] + "\n"
}
