package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PhoneNumber represents a validated destination number value object
type PhoneNumber struct {
	number string // Stored in E.164 format (+1234567890)
}

var (
	// E.164 format regex: + followed by up to 15 digits
	e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

	// US phone number regex for parsing various formats
	usPhoneRegex = regexp.MustCompile(`^(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})$`)
)

// NewPhoneNumber creates a new PhoneNumber value object with validation
func NewPhoneNumber(number string) (PhoneNumber, error) {
	if number == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhoneNumber(number)

	// Try to parse as E.164 format first
	if e164Regex.MatchString(cleaned) {
		return PhoneNumber{number: cleaned}, nil
	}

	// Try to parse as US phone number
	if m := usPhoneRegex.FindStringSubmatch(number); m != nil {
		return PhoneNumber{number: "+1" + m[1] + m[2] + m[3]}, nil
	}

	return PhoneNumber{}, fmt.Errorf("invalid phone number format: %s", number)
}

// NewPhoneNumberE164 creates a PhoneNumber from E.164 format with strict validation
func NewPhoneNumberE164(number string) (PhoneNumber, error) {
	if !e164Regex.MatchString(number) {
		return PhoneNumber{}, fmt.Errorf("invalid E.164 format: %s", number)
	}

	return PhoneNumber{number: number}, nil
}

// MustNewPhoneNumber creates PhoneNumber and panics on error (for constants/tests)
func MustNewPhoneNumber(number string) PhoneNumber {
	phone, err := NewPhoneNumber(number)
	if err != nil {
		panic(err)
	}
	return phone
}

// String returns the phone number in E.164 format
func (p PhoneNumber) String() string {
	return p.number
}

// E164 returns the phone number in E.164 format (alias for String)
func (p PhoneNumber) E164() string {
	return p.number
}

// IsEmpty checks if the phone number is empty
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

// Equal checks if two PhoneNumber values are equal
func (p PhoneNumber) Equal(other PhoneNumber) bool {
	return p.number == other.number
}

// IsUS checks if the phone number is from US/Canada (+1)
func (p PhoneNumber) IsUS() bool {
	return strings.HasPrefix(p.number, "+1")
}

// AreaCode returns the area code for US numbers
func (p PhoneNumber) AreaCode() string {
	if !p.IsUS() || len(p.number) != 12 {
		return ""
	}
	return p.number[2:5]
}

// MarshalJSON implements JSON marshaling
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.number)
}

// UnmarshalJSON implements JSON unmarshaling
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var number string
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}

	phone, err := NewPhoneNumber(number)
	if err != nil {
		return err
	}

	*p = phone
	return nil
}

// Value implements driver.Valuer for database storage
func (p PhoneNumber) Value() (driver.Value, error) {
	if p.number == "" {
		return nil, nil
	}
	return p.number, nil
}

// Scan implements sql.Scanner for database retrieval
func (p *PhoneNumber) Scan(value interface{}) error {
	if value == nil {
		*p = PhoneNumber{}
		return nil
	}

	switch v := value.(type) {
	case string:
		phone, err := NewPhoneNumber(v)
		if err != nil {
			return err
		}
		*p = phone
		return nil
	case []byte:
		phone, err := NewPhoneNumber(string(v))
		if err != nil {
			return err
		}
		*p = phone
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PhoneNumber", value)
	}
}

// cleanPhoneNumber strips formatting characters, keeping digits and a leading +
func cleanPhoneNumber(number string) string {
	var b strings.Builder
	for i, r := range number {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
