package main

import (
	"strings"
	"testing"

	"github.com/dujiao-next/orderflow/internal/config"
)

func TestWeakSecretReason(t *testing.T) {
	cases := []struct {
		secret string
		weak   bool
	}{
		{secret: "short", weak: true},
		{secret: strings.Repeat("a", 24) + "change-me", weak: true},
		{secret: "k3Jd92LmQpXz7VbNcR5tYw8AeHs4UfGi", weak: false},
	}
	for _, tc := range cases {
		if got := weakSecretReason(tc.secret) != ""; got != tc.weak {
			t.Fatalf("secret %q weak want %v got %v", tc.secret, tc.weak, got)
		}
	}
}

func TestCheckSecretsNamesBothKeys(t *testing.T) {
	cfg := &config.Config{}
	err := checkSecrets(cfg)
	if err == nil {
		t.Fatalf("empty secrets should fail")
	}
	if !strings.Contains(err.Error(), "jwt.secret") || !strings.Contains(err.Error(), "user_jwt.secret") {
		t.Fatalf("error should name both keys, got %v", err)
	}
}
