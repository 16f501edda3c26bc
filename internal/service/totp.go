package service

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPEnrollment es el material de alta de segundo factor: el secreto en
// base32 y la URI otpauth:// que consume la app autenticadora.
type TOTPEnrollment struct {
	Secret        string `json:"secret"`
	EnrollmentURI string `json:"enrollment_uri"`
}

// GenerateTOTPSecret genera un secreto aleatorio etiquetado con el emisor y
// la cuenta del usuario.
func GenerateTOTPSecret(issuer, accountName string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return TOTPEnrollment{}, err
	}
	return TOTPEnrollment{
		Secret:        key.Secret(),
		EnrollmentURI: key.URL(),
	}, nil
}

// VerifyTOTPCode valida un código contra el secreto con tolerancia de un
// paso de reloj hacia cada lado. La comparación interna es de tiempo constante.
func VerifyTOTPCode(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
