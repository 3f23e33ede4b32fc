package webapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataMissing = errors.New("init data is missing")
	ErrInitDataHash    = errors.New("init data signature mismatch")
	ErrInitDataExpired = errors.New("init data is expired")
)

// TelegramUser is the user object Telegram embeds in Mini App init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// InitData is a verified Mini App launch payload.
type InitData struct {
	User     TelegramUser
	AuthDate time.Time
	QueryID  string
}

// ValidateInitData verifies the signature of raw against botToken and
// rejects payloads older than maxAge. A zero maxAge disables the age check.
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	if raw == "" {
		return nil, ErrInitDataMissing
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataHash
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrInitDataHash
	}
	if !hmac.Equal(signInitData(values, botToken), want) {
		return nil, ErrInitDataHash
	}

	unix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid auth_date: %w", err)
	}
	authDate := time.Unix(unix, 0)
	if maxAge > 0 && now.Sub(authDate) > maxAge {
		return nil, ErrInitDataExpired
	}

	out := &InitData{AuthDate: authDate, QueryID: values.Get("query_id")}
	if err := json.Unmarshal([]byte(values.Get("user")), &out.User); err != nil {
		return nil, fmt.Errorf("invalid user field: %w", err)
	}
	if out.User.ID == 0 {
		return nil, errors.New("init data has no user id")
	}
	return out, nil
}

// SignInitData returns values encoded with a valid hash field. It is the
// inverse of ValidateInitData.
func SignInitData(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k != "hash" {
			signed[k] = v
		}
	}
	signed.Set("hash", hex.EncodeToString(signInitData(signed, botToken)))
	return signed.Encode()
}

// signInitData computes HMAC-SHA256 over the sorted key=value lines with
// the secret HMAC-SHA256("WebAppData", botToken).
func signInitData(values url.Values, botToken string) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
