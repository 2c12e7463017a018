package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// SaleStatus represents the lifecycle state of a sale
type SaleStatus int

const (
	SaleStatusPending   SaleStatus = 0
	SaleStatusCompleted SaleStatus = 1
	SaleStatusCancelled SaleStatus = 2
)

func (s SaleStatus) String() string {
	names := [...]string{"pending", "completed", "cancelled"}
	if int(s) < 0 || int(s) >= len(names) {
		return "pending"
	}
	return names[s]
}

func (s SaleStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SaleStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = SaleStatus(i)
		return nil
	}
	parsed, err := ParseSaleStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSaleStatus converts a status name into a SaleStatus
func ParseSaleStatus(str string) (SaleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "pending":
		return SaleStatusPending, nil
	case "completed":
		return SaleStatusCompleted, nil
	case "cancelled", "canceled":
		return SaleStatusCancelled, nil
	}
	return SaleStatusPending, fmt.Errorf("unknown sale status %q", str)
}

func (s SaleStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *SaleStatus) Scan(value interface{}) error {
	if value == nil {
		*s = SaleStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = SaleStatus(v)
	case int:
		*s = SaleStatus(v)
	}
	return nil
}
