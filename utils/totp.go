package utils

import (
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret creates the secret used to second-factor the admin login.
func GenerateTOTPSecret(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "GST Calculator Admin",
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

func VerifyTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
