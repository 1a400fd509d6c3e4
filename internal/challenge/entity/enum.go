package entity

import "strings"

// Purpose is the closed-set reason a verification code was issued. It
// scopes challenge uniqueness, cooldown, and TTL overrides.
type Purpose int16

const (
	// PurposeUnknown is mean purpose is not known / not set.
	PurposeUnknown Purpose = 0

	// PurposeRegistration verifies a new account sign-up.
	PurposeRegistration Purpose = 1

	// PurposeLogin verifies a sign-in attempt.
	PurposeLogin Purpose = 2

	// PurposePasswordRecovery verifies a password reset request.
	PurposePasswordRecovery Purpose = 3

	// PurposeEmailChange verifies a new email address.
	PurposeEmailChange Purpose = 4

	// PurposePhoneChange verifies a new phone number.
	PurposePhoneChange Purpose = 5

	// PurposeSecondFactor verifies a second authentication factor.
	PurposeSecondFactor Purpose = 6
)

func (p Purpose) String() string {
	switch p {
	case PurposeRegistration:
		return "registration"
	case PurposeLogin:
		return "login"
	case PurposePasswordRecovery:
		return "password_recovery"
	case PurposeEmailChange:
		return "email_change"
	case PurposePhoneChange:
		return "phone_change"
	case PurposeSecondFactor:
		return "second_factor"
	default:
		return "unknown"
	}
}

func (p Purpose) IsUnknown() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposePasswordRecovery,
		PurposeEmailChange, PurposePhoneChange, PurposeSecondFactor:
		return false
	default:
		return true
	}
}

func PurposeFromString(s string) Purpose {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "registration":
		return PurposeRegistration
	case "login":
		return PurposeLogin
	case "password_recovery":
		return PurposePasswordRecovery
	case "email_change":
		return PurposeEmailChange
	case "phone_change":
		return PurposePhoneChange
	case "second_factor":
		return PurposeSecondFactor
	default:
		return PurposeUnknown
	}
}
