package audit

import (
	"strings"
	"unicode/utf8"
)

// piiKeys are metadata keys whose values are masked before they reach the audit store.
var piiKeys = map[string]func(string) string{
	"email": maskEmail,
	"from":  maskEmail,
	"to":    maskEmail,
	"phone": maskPhone,
	"name":  maskName,
}

// MaskPII returns a copy of metadata with contact data masked.
func MaskPII(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if mask, ok := piiKeys[k]; ok {
			if s, isString := v.(string); isString && s != "" {
				out[k] = mask(s)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func maskEmail(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return maskName(s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r) + "***" + s[at:]
}

func maskPhone(s string) string {
	if len(s) <= 3 {
		return "***"
	}
	return "***" + s[len(s)-3:]
}

func maskName(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r) + "***"
}
