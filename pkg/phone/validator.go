package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without an international prefix.
const DefaultRegion = "IT"

// ValidationResult contains the result of phone number validation.
type ValidationResult struct {
	IsValid  bool   `json:"isValid"`
	E164     string `json:"e164"`
	Region   string `json:"region"`
	Mobile   bool   `json:"mobile"`
	National string `json:"national"`
}

func parse(phone, region string) (*phonenumbers.PhoneNumber, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}
	if region == "" {
		region = DefaultRegion
	}
	// WhatsApp ids and some portals drop the leading plus.
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}
	return parsed, nil
}

// ValidatePhone validates a phone number and returns detailed information.
func ValidatePhone(phone, region string) (*ValidationResult, error) {
	parsed, err := parse(phone, region)
	if err != nil {
		return nil, err
	}

	numberType := phonenumbers.GetNumberType(parsed)
	return &ValidationResult{
		IsValid:  phonenumbers.IsValidNumber(parsed),
		E164:     phonenumbers.Format(parsed, phonenumbers.E164),
		Region:   phonenumbers.GetRegionCodeForNumber(parsed),
		Mobile:   numberType == phonenumbers.MOBILE || numberType == phonenumbers.FIXED_LINE_OR_MOBILE,
		National: phonenumbers.Format(parsed, phonenumbers.NATIONAL),
	}, nil
}

// NormalizePhone normalizes a phone number to E.164 format.
func NormalizePhone(phone, region string) (string, error) {
	parsed, err := parse(phone, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// NormalizeWhatsAppID turns a WhatsApp sender id ("393331234567") into E.164.
func NormalizeWhatsAppID(id string) (string, error) {
	id = strings.TrimSpace(strings.TrimSuffix(id, "@s.whatsapp.net"))
	if id != "" && !strings.HasPrefix(id, "+") {
		id = "+" + id
	}
	return NormalizePhone(id, "")
}
