package datacollector

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

const (
	Resource      = "/api/logs"
	APIVersion    = "2016-04-01"
	ContentType   = "application/json"
	DefaultDomain = "ods.opinsights.azure.com"

	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderLogType       = "Log-Type"
	HeaderMsDate        = "x-ms-date"

	signedMethod = http.MethodPost
	authScheme   = "SharedKey"
)

// FormatDate renders t as the RFC 1123 GMT value Azure expects in x-ms-date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// StringToSign builds the canonical SharedKey string for a POST to /api/logs.
func StringToSign(contentLength int, date string) string {
	return signedMethod + "\n" +
		strconv.Itoa(contentLength) + "\n" +
		ContentType + "\n" +
		HeaderMsDate + ":" + date + "\n" +
		Resource
}

// Sign returns the base64 HMAC-SHA256 of the string to sign, keyed with the
// decoded workspace shared key.
func Sign(key []byte, contentLength int, date string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(StringToSign(contentLength, date)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func Authorization(workspaceID, signature string) string {
	return authScheme + " " + workspaceID + ":" + signature
}
