package model

import (
	"fmt"
	"strings"
)

// Known request flags on the onboarding form.
const (
	FlagEmployeeID     = "EmployeeID_Requested"
	FlagPurchasingCard = "PurchasingCard_Requested"
	FlagGasCard        = "GasCard_Requested"
	FlagEmailAddress   = "EmailAddress_Provided"
	FlagMobilePhone    = "MobilePhone_Requested"
)

// Raw form keys mapped onto Subject fields.
const (
	fieldSubjectID     = "submission_id"
	fieldFirstName     = "LegalFirstName"
	fieldLastName      = "LegalLastName"
	fieldManager       = "Manager"
	fieldDepartment    = "Department"
	fieldLocation      = "Location"
	fieldPositionTitle = "PositionTitle"
	fieldPayRate       = "PayRate"
)

// Truthy normalizes a stored flag value to a bool.
// "true", "1" and "yes" (any case, surrounding space ignored) are true, as
// are bool true and non-zero integers. Everything else, including nil, is false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		}
		return false
	default:
		return Truthy(fmt.Sprint(val))
	}
}

// IsFlagKey reports whether a raw form key names a request flag.
func IsFlagKey(key string) bool {
	return strings.HasSuffix(key, "_Requested") || strings.HasSuffix(key, "_Provided")
}

// SubjectFromFields builds a Subject from raw form fields.
func SubjectFromFields(fields map[string]any) Subject {
	return ApplyFields(Subject{}, fields)
}

// ApplyFields merges raw form fields onto s and returns the result.
// Keys are trimmed; known keys set typed fields, flag keys are normalized
// with Truthy, PayRate is dropped and everything else lands in Extra.
// The subject id is only taken from fields when s has none.
func ApplyFields(s Subject, fields map[string]any) Subject {
	flags := make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		flags[k] = v
	}
	extra := make(map[string]any, len(s.Extra))
	for k, v := range s.Extra {
		extra[k] = v
	}

	for rawKey, v := range fields {
		key := strings.TrimSpace(rawKey)
		switch {
		case key == fieldSubjectID || strings.EqualFold(key, "id"):
			if s.ID == "" && v != nil {
				s.ID = strings.TrimSpace(fmt.Sprint(v))
			}
		case key == fieldFirstName:
			s.FirstName = str(v)
		case key == fieldLastName:
			s.LastName = str(v)
		case key == fieldManager:
			s.Manager = str(v)
		case key == fieldDepartment:
			s.Department = str(v)
		case key == fieldLocation:
			s.Location = str(v)
		case key == fieldPositionTitle:
			s.PositionTitle = str(v)
		case strings.EqualFold(key, fieldPayRate):
			// never persisted in clear
		case IsFlagKey(key):
			flags[key] = Truthy(v)
		default:
			extra[key] = v
		}
	}

	s.Flags = flags
	if len(extra) > 0 {
		s.Extra = extra
	} else {
		s.Extra = nil
	}
	return s
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
