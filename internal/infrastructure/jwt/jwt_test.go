package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	pubBytes, _ := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privateKey, string(pubPEM)
}

func signToken(privateKey *rsa.PrivateKey, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, _ := token.SignedString(privateKey)
	return tokenString
}

func serviceClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": sub,
		"aud": ServiceTokenAudience,
		"iss": sub,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
}

func TestNewService(t *testing.T) {
	_, pubPEM := generateTestKey(t)

	if _, err := NewService(pubPEM, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewService_SingleLinePEM(t *testing.T) {
	_, pubPEM := generateTestKey(t)
	singleLine := strings.ReplaceAll(strings.TrimSpace(pubPEM), "\n", " ")

	if _, err := NewService(singleLine, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewService_InvalidKey(t *testing.T) {
	if _, err := NewService("not a key", nil); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestValidateServiceToken(t *testing.T) {
	privateKey, pubPEM := generateTestKey(t)
	svc, _ := NewService(pubPEM, nil)

	sub, err := svc.ValidateServiceToken(signToken(privateKey, serviceClaims("billing")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "billing" {
		t.Errorf("expected subject billing, got %q", sub)
	}
}

func TestValidateServiceToken_Expired(t *testing.T) {
	privateKey, pubPEM := generateTestKey(t)
	svc, _ := NewService(pubPEM, nil)

	claims := serviceClaims("billing")
	claims["exp"] = time.Now().Add(-time.Minute).Unix()

	_, err := svc.ValidateServiceToken(signToken(privateKey, claims))
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateServiceToken_WrongKey(t *testing.T) {
	_, pubPEM := generateTestKey(t)
	otherKey, _ := generateTestKey(t)
	svc, _ := NewService(pubPEM, nil)

	_, err := svc.ValidateServiceToken(signToken(otherKey, serviceClaims("billing")))
	if !errors.Is(err, domain.ErrTokenInvalidSignature) {
		t.Errorf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestValidateServiceToken_WrongAudience(t *testing.T) {
	privateKey, pubPEM := generateTestKey(t)
	svc, _ := NewService(pubPEM, nil)

	claims := serviceClaims("billing")
	claims["aud"] = "api-gateway"

	_, err := svc.ValidateServiceToken(signToken(privateKey, claims))
	if !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestValidateServiceToken_MissingSubject(t *testing.T) {
	privateKey, pubPEM := generateTestKey(t)
	svc, _ := NewService(pubPEM, nil)

	claims := serviceClaims("")

	_, err := svc.ValidateServiceToken(signToken(privateKey, claims))
	if !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestValidateServiceToken_IssuerAllowList(t *testing.T) {
	privateKey, _ := generateTestKey(t)
	svc := NewServiceWithKey(&privateKey.PublicKey, []string{"billing"})

	if _, err := svc.ValidateServiceToken(signToken(privateKey, serviceClaims("billing"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.ValidateServiceToken(signToken(privateKey, serviceClaims("orders")))
	if !errors.Is(err, domain.ErrTokenIssuerNotAllowed) {
		t.Errorf("expected ErrTokenIssuerNotAllowed, got %v", err)
	}
}

func TestValidateServiceToken_NoKey(t *testing.T) {
	svc := NewServiceWithKey(nil, nil)

	if _, err := svc.ValidateServiceToken("token"); err == nil {
		t.Fatal("expected error without public key")
	}
}
