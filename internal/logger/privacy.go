package logger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce = randomNonce()

	// Keys whose values are user content or credentials.
	sensitiveKeys = map[string]struct{}{
		"text":       {},
		"content":    {},
		"message":    {},
		"code":       {},
		"phone":      {},
		"bio":        {},
		"first_name": {},
		"last_name":  {},
	}
	sensitiveKeyParts = []string{"token", "secret", "password", "passphrase", "authorization"}

	// Platform ids that are logged only as fingerprints.
	fingerprintKeys = map[string]struct{}{
		"chat_id":    {},
		"sender_id":  {},
		"message_id": {},
		"jid":        {},
	}
)

type privacyCore struct {
	zapcore.Core
}

func NewPrivacyCore(next zapcore.Core) zapcore.Core {
	return &privacyCore{Core: next}
}

func (c *privacyCore) With(fields []zapcore.Field) zapcore.Core {
	return &privacyCore{Core: c.Core.With(SanitizeFields(fields))}
}

func (c *privacyCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *privacyCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, SanitizeFields(fields))
}

func SanitizeFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, sanitizeField(f))
	}
	return out
}

func sanitizeField(f zapcore.Field) zapcore.Field {
	key := strings.ToLower(strings.TrimSpace(f.Key))
	if isSensitiveKey(key) {
		return zap.String(f.Key, redactedValue)
	}
	if _, ok := fingerprintKeys[key]; ok && f.Type == zapcore.StringType {
		return zap.String(strings.TrimSuffix(f.Key, "_id")+"_fp", FingerprintID(f.String))
	}
	return f
}

func isSensitiveKey(key string) bool {
	if _, ok := sensitiveKeys[key]; ok {
		return true
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// FingerprintID maps an id to a stable per-process token.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "tenantbot"
	}
	return hex.EncodeToString(buf)
}
