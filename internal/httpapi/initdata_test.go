package httpapi

import (
	"strings"
	"testing"
)

const testToken = "123456:TEST-token"

func signedInitData(t *testing.T, userID string) string {
	t.Helper()
	return EncodeInitData(map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAE",
		"user":      `{"id":` + userID + `,"first_name":"Ann"}`,
	}, testToken)
}

func TestValidInitDataAcceptsCorrectSignature(t *testing.T) {
	if !ValidInitData(signedInitData(t, "42"), testToken) {
		t.Fatalf("expected signed payload to validate")
	}
}

func TestValidInitDataRejectsTampering(t *testing.T) {
	good := signedInitData(t, "42")

	idx := strings.Index(good, "hash=") + len("hash=")
	flipped := []byte(good)
	if flipped[idx] == 'a' {
		flipped[idx] = 'b'
	} else {
		flipped[idx] = 'a'
	}

	cases := map[string]string{
		"flipped hash byte": string(flipped),
		"added field":       good + "&extra=1",
		"removed field":     strings.Replace(good, "query_id=AAE&", "", 1),
		"wrong token":       EncodeInitData(map[string]string{"auth_date": "1"}, "other"),
		"missing hash":      "auth_date=1700000000&query_id=AAE",
		"segment without =": good + "&broken",
		"bad escape":        good + "&x=%zz",
		"empty":             "",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if ValidInitData(raw, testToken) {
				t.Fatalf("expected %q to be rejected", raw)
			}
		})
	}
}

func TestSignInitDataIsOrderIndependent(t *testing.T) {
	a := SignInitData(map[string]string{"a": "1", "b": "2"}, testToken)
	b := SignInitData(map[string]string{"b": "2", "a": "1"}, testToken)
	if a != b || len(a) != 64 {
		t.Fatalf("expected stable 64-char hex, got %q and %q", a, b)
	}
}
