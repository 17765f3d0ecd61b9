package services

import (
	"testing"
	"time"
)

func newTestJWTService() *JWTService {
	return &JWTService{
		AccessTokenDuration: time.Hour,
		jwtSecretKey:        "test-secret",
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.ToJWT("tenant-42")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tenantID, err := svc.VerifyJWTToken(token)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if tenantID != "tenant-42" {
		t.Errorf("expected tenant-42, got %s", tenantID)
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := newTestJWTService()
	svc.AccessTokenDuration = -time.Hour

	token, err := svc.ToJWT("tenant-42")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.VerifyJWTToken(token); err == nil {
		t.Fatal("expected expired token rejected")
	}
}

func TestJWTRejectsWrongKey(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.ToJWT("tenant-42")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	other := newTestJWTService()
	other.jwtSecretKey = "different-secret"

	if _, err := other.VerifyJWTToken(token); err == nil {
		t.Fatal("expected token signed with another key rejected")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	svc := newTestJWTService()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"missing", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"bare token", "abc.def.ghi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ExtractTokenFromHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
