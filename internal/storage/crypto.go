package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keySalt       = "todo_bot_salt"
	keyIterations = 100000
)

// Version, timestamp, IV, one cipher block and the HMAC, base64 encoded.
const minTokenLen = (1 + 8 + 16 + 16 + 32 + 2) / 3 * 4

var ErrDecrypt = errors.New("storage: cannot decrypt")

// Crypter encrypts single values and blobs with a Fernet key derived from
// the secret, and hashes content with HMAC-SHA256 keyed by the raw secret.
type Crypter struct {
	secret  []byte
	key     *fernet.Key
	enabled bool
	logger  *log.Logger
}

func NewCrypter(secret string, enabled bool, logger *log.Logger) *Crypter {
	c := &Crypter{secret: []byte(secret), enabled: enabled, logger: logger}
	if enabled {
		c.key = deriveKey(secret)
	}
	return c
}

func deriveKey(secret string) *fernet.Key {
	raw := pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, 32, sha256.New)
	var key fernet.Key
	copy(key[:], raw)
	return &key
}

func (c *Crypter) Enabled() bool {
	return c.enabled
}

// Encrypt returns a Fernet token, or the input unchanged when encryption is
// disabled or fails.
func (c *Crypter) Encrypt(plain string) string {
	if !c.enabled || plain == "" {
		return plain
	}
	tok, err := c.encryptBytes([]byte(plain))
	if err != nil {
		c.logger.Warn("encryption failed, storing plaintext", "err", err)
		return plain
	}
	return string(tok)
}

// Decrypt reverses Encrypt. Values that are not valid tokens are returned as
// is so plaintext records written before encryption was enabled stay readable.
func (c *Crypter) Decrypt(value string) string {
	if !c.enabled || value == "" {
		return value
	}
	plain, err := c.decryptBytes([]byte(value))
	if err != nil {
		c.logger.Warn("decryption failed, using stored value", "err", err)
		return value
	}
	return string(plain)
}

func (c *Crypter) Hash(content string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Crypter) encryptBytes(plain []byte) ([]byte, error) {
	if !c.enabled {
		return plain, nil
	}
	return fernet.EncryptAndSign(plain, c.key)
}

func (c *Crypter) decryptBytes(tok []byte) ([]byte, error) {
	if !c.enabled {
		return tok, nil
	}
	if len(tok) < minTokenLen {
		return nil, ErrDecrypt
	}
	plain := fernet.VerifyAndDecrypt(tok, -1, []*fernet.Key{c.key})
	if plain == nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
