package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// MFAConfig holds the TOTP parameters. The defaults match what every
// authenticator app expects: 6 digits, 30 second steps, one step of skew.
type MFAConfig struct {
	Digits int
	Step   uint
	Window uint
	Issuer string
}

// DefaultMFAConfig returns the standard TOTP configuration.
func DefaultMFAConfig(issuer string) MFAConfig {
	return MFAConfig{Digits: 6, Step: 30, Window: 1, Issuer: issuer}
}

// MFAService handles TOTP secret generation, code verification, and
// provisioning artifacts (otpauth URI, QR code, backup codes).
type MFAService struct {
	config MFAConfig
}

func NewMFAService(config MFAConfig) *MFAService {
	return &MFAService{config: config}
}

// GenerateSecret creates a 160-bit random secret, base32 encoded (RFC 4648,
// padded) for authenticator apps.
func (s *MFAService) GenerateSecret() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base32.StdEncoding.EncodeToString(secret), nil
}

// ValidateCode checks the code against the secret, accepting the current
// step plus/minus the configured window. Invalid base32 and wrong codes are
// both plain failures; the caller never learns which.
func (s *MFAService) ValidateCode(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    s.config.Step,
		Skew:      s.config.Window,
		Digits:    otp.Digits(s.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// ProvisioningURI builds the otpauth:// URI an authenticator app enrolls from.
func (s *MFAService) ProvisioningURI(email, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&digits=%d&period=%d",
		url.PathEscape(s.config.Issuer),
		url.PathEscape(email),
		secret,
		url.QueryEscape(s.config.Issuer),
		s.config.Digits,
		s.config.Step,
	)
}

// QRCode renders the provisioning URI as a PNG for display during enrollment.
func (s *MFAService) QRCode(email, secret string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(s.ProvisioningURI(email, secret))
	if err != nil {
		return nil, fmt.Errorf("failed to build otp key: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to create qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateBackupCodes creates 10 single-use recovery codes of 8 hex chars.
// Single-use enforcement is the caller's responsibility.
func (s *MFAService) GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 10)
	for i := range codes {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = fmt.Sprintf("%08x", raw)
	}
	return codes, nil
}

// GenerateCode produces the current code for a secret. Test helper.
func (s *MFAService) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    s.config.Step,
		Skew:      s.config.Window,
		Digits:    otp.Digits(s.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
}
