package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Scenereel-Signature"
	signaturePrefix = "sha256="
)

var (
	ErrSignatureMissing = errors.New("notification signature missing")
	ErrSignatureInvalid = errors.New("notification signature invalid")
)

// Sign возвращает значение заголовка подписи для тела.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verifier проверяет HMAC-подпись уведомлений. Без секрета неподписанные
// уведомления принимаются с предупреждением, если не включён require.
type Verifier struct {
	secret  []byte
	require bool
	logger  *zap.Logger
}

func NewVerifier(secret string, require bool, logger *zap.Logger) *Verifier {
	v := &Verifier{require: require, logger: logger.Named("WebhookVerifier")}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if v.secret == nil && require {
		v.logger.Warn("Signature required but no webhook secret configured, every notification will be rejected")
	}
	return v
}

// Enabled - настроен ли секрет.
func (v *Verifier) Enabled() bool { return v.secret != nil }

// Verify проверяет заголовок header для тела body.
func (v *Verifier) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if v.secret == nil {
		if v.require {
			return ErrSignatureMissing
		}
		v.logger.Warn("Accepting unsigned notification, webhook secret is not configured")
		return nil
	}
	if header == "" {
		return ErrSignatureMissing
	}
	hexSig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}
