package otp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Codes are valid for one period plus one step of skew either side.
const (
	codePeriod = 300
	codeSkew   = 1
)

// CodeIssuer derives a per-identifier TOTP secret from a service-wide
// seed, so codes can be validated statelessly on any instance.
type CodeIssuer struct {
	seed []byte
}

// NewCodeIssuer creates a code issuer from the configured seed
func NewCodeIssuer(seed string) *CodeIssuer {
	return &CodeIssuer{seed: []byte(seed)}
}

func (c *CodeIssuer) secretFor(identifier string) string {
	mac := hmac.New(sha256.New, c.seed)
	mac.Write([]byte(identifier))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil))
}

// Generate produces the 6-digit code for the identifier at the given time
func (c *CodeIssuer) Generate(identifier string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(c.secretFor(identifier), at, totp.ValidateOpts{
		Period:    codePeriod,
		Skew:      codeSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return code, nil
}

// Validate checks a submitted code for the identifier
func (c *CodeIssuer) Validate(identifier, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, c.secretFor(identifier), at, totp.ValidateOpts{
		Period:    codePeriod,
		Skew:      codeSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
