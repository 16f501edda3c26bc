package service

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestGenerateTOTPSecret(t *testing.T) {
	enrollment, err := GenerateTOTPSecret("auth-hub", "user@example.com")
	if err != nil {
		t.Fatalf("generate totp secret: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatalf("expected secret")
	}
	if !strings.HasPrefix(enrollment.EnrollmentURI, "otpauth://totp/") {
		t.Fatalf("unexpected enrollment uri: %s", enrollment.EnrollmentURI)
	}
	if !strings.Contains(enrollment.EnrollmentURI, "auth-hub") {
		t.Fatalf("expected issuer in uri: %s", enrollment.EnrollmentURI)
	}
}

func TestVerifyTOTPCode(t *testing.T) {
	enrollment, err := GenerateTOTPSecret("auth-hub", "user@example.com")
	if err != nil {
		t.Fatalf("generate totp secret: %v", err)
	}

	code, err := totp.GenerateCode(enrollment.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if !VerifyTOTPCode(enrollment.Secret, code) {
		t.Fatalf("expected current code to verify")
	}
}

func TestVerifyTOTPCode_SkewTolerance(t *testing.T) {
	enrollment, err := GenerateTOTPSecret("auth-hub", "user@example.com")
	if err != nil {
		t.Fatalf("generate totp secret: %v", err)
	}

	// Código del paso anterior: dentro de la tolerancia de ±1 paso.
	code, err := totp.GenerateCode(enrollment.Secret, time.Now().UTC().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if !VerifyTOTPCode(enrollment.Secret, code) {
		t.Fatalf("expected previous-step code to verify")
	}

	// Muy lejos del paso actual: rechazado.
	stale, err := totp.GenerateCode(enrollment.Secret, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if VerifyTOTPCode(enrollment.Secret, stale) {
		t.Fatalf("expected stale code to be rejected")
	}
}

func TestVerifyTOTPCode_WrongSecret(t *testing.T) {
	first, err := GenerateTOTPSecret("auth-hub", "a@example.com")
	if err != nil {
		t.Fatalf("generate totp secret: %v", err)
	}
	second, err := GenerateTOTPSecret("auth-hub", "b@example.com")
	if err != nil {
		t.Fatalf("generate totp secret: %v", err)
	}

	code, err := totp.GenerateCode(first.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if VerifyTOTPCode(second.Secret, code) {
		t.Fatalf("expected code for another secret to be rejected")
	}
}

func TestVerifyTOTPCode_EmptyInputs(t *testing.T) {
	if VerifyTOTPCode("", "123456") {
		t.Fatalf("expected empty secret to fail")
	}
	if VerifyTOTPCode("JBSWY3DPEHPK3PXP", "") {
		t.Fatalf("expected empty code to fail")
	}
}
