package verification

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken returns a 32-byte random token in hex. The token is stored
// on the user row and consumed exactly once by the verification update.
func NewToken() (string, error) {
	const op = "verification.NewToken"

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(buf), nil
}

// Link builds the verification URL embedded in the email.
func Link(baseURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", baseURL, token)
}

// EmailBody renders the verification email.
func EmailBody(link string) string {
	return fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome to the community!</h2>
  <p>Thanks for signing up. Click the link below to confirm your email address:</p>
  <p style="margin: 30px 0;"><a href="%s">Confirm email address</a></p>
  <p style="color: #666; font-size: 14px;">If you did not request this, you can safely ignore this message.</p>
</div>`, link)
}

const EmailSubject = "Confirm your email address"
