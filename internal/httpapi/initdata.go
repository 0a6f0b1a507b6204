package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

var errMalformedInitData = errors.New("malformed initData")

// ValidInitData reports whether initData carries a correct Mini App
// signature for botToken. Any parse error or a missing hash is invalid.
func ValidInitData(initData, botToken string) bool {
	fields, err := parseInitData(initData)
	if err != nil {
		return false
	}
	received, ok := fields["hash"]
	if !ok {
		return false
	}
	delete(fields, "hash")

	expected := SignInitData(fields, botToken)
	return hmac.Equal([]byte(expected), []byte(received))
}

// SignInitData computes the hex hash for fields. It is used by the validator
// and by tooling that needs to mint test payloads.
func SignInitData(fields map[string]string, botToken string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// EncodeInitData signs fields and renders them as a query string.
func EncodeInitData(fields map[string]string, botToken string) string {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", SignInitData(fields, botToken))
	return values.Encode()
}

// parseInitData splits a query string strictly: every segment must be a
// key=value pair. Blank values are dropped and later duplicates win.
func parseInitData(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, errMalformedInitData
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, "&") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, errMalformedInitData
		}
		if value == "" {
			continue
		}
		key, err := url.QueryUnescape(name)
		if err != nil {
			return nil, errMalformedInitData
		}
		val, err := url.QueryUnescape(value)
		if err != nil {
			return nil, errMalformedInitData
		}
		out[key] = val
	}
	return out, nil
}
