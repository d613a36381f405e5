package payments

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

func hmacSHA256(key, data string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func sha256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func md5Hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func sha1Base64(data string) string {
	sum := sha1.Sum([]byte(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// equalSign compares signatures in constant time.
func equalSign(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// formatAmount renders major units with exactly two decimals.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// toMinor converts major units into minor units, rounding half away from zero.
func toMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// plainAmount renders the shortest decimal form, e.g. 10 or 10.5.
func plainAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
