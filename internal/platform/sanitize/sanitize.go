// Package sanitize scrubs credential material out of error messages and log
// lines before they can escape a gateway boundary, per the results- and
// upload-location gateways' security requirement.
package sanitize

import "regexp"

var (
	accessKeyPattern = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)
	longBase64       = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
	xmlCredFields    = regexp.MustCompile(`(?s)<(AWSAccessKeyId|SecretAccessKey|Signature)>.*?</(?:AWSAccessKeyId|SecretAccessKey|Signature)>`)
	jsonCredFields   = regexp.MustCompile(`"(?:AWSAccessKeyId|SecretAccessKey|Signature|aws_access_key_id|aws_secret_access_key)"\s*:\s*"[^"]*"`)
	valueSuffix      = regexp.MustCompile(`:\s*"[^"]*"`)
)

// Message redacts credential-shaped substrings from s. It is idempotent:
// Message(Message(s)) == Message(s).
func Message(s string) string {
	s = xmlCredFields.ReplaceAllString(s, "<$1>[REDACTED]</$1>")
	s = jsonCredFields.ReplaceAllStringFunc(s, func(m string) string {
		idx := valueSuffix.FindStringIndex(m)
		if idx == nil {
			return m
		}
		return m[:idx[0]] + `: "[REDACTED]"`
	})
	s = accessKeyPattern.ReplaceAllString(s, "[REDACTED_KEY]")
	s = longBase64.ReplaceAllString(s, "[REDACTED]")
	return s
}
