package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentMethod identifies how a sale is settled
type PaymentMethod int

const (
	PaymentMethodCash   PaymentMethod = 0
	PaymentMethodStripe PaymentMethod = 1
	PaymentMethodPayPal PaymentMethod = 2
)

func (m PaymentMethod) String() string {
	names := [...]string{"cash", "stripe", "paypal"}
	if int(m) < 0 || int(m) >= len(names) {
		return "cash"
	}
	return names[m]
}

// IsCash reports whether the sale completes at the counter
func (m PaymentMethod) IsCash() bool {
	return m == PaymentMethodCash
}

// ParsePaymentMethod converts a case-insensitive name into a PaymentMethod
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return PaymentMethodCash, nil
	case "stripe", "card":
		return PaymentMethodStripe, nil
	case "paypal":
		return PaymentMethodPayPal, nil
	}
	return PaymentMethodCash, fmt.Errorf("unknown payment method %q", s)
}

func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*m = PaymentMethod(i)
		return nil
	}
	parsed, err := ParsePaymentMethod(str)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m PaymentMethod) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *PaymentMethod) Scan(value interface{}) error {
	if value == nil {
		*m = PaymentMethodCash
		return nil
	}
	switch v := value.(type) {
	case int64:
		*m = PaymentMethod(v)
	case int:
		*m = PaymentMethod(v)
	}
	return nil
}
