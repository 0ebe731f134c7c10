// Package businessflow contains the core business logic and use cases for OTP and order workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Phone and OTP errors
	ErrInvalidPhone         = errors.New("phone number format is invalid")
	ErrOTPCooldownActive    = errors.New("an OTP was sent recently, wait before requesting again")
	ErrOTPHourlyCapExceeded = errors.New("too many OTP requests for this number, try again later")
	ErrOTPNotFoundOrExpired = errors.New("no active OTP found for this number and session")
	ErrOTPAttemptsExceeded  = errors.New("maximum verification attempts exceeded")
	ErrInvalidOTPCode       = errors.New("invalid OTP code")
	ErrSMSDispatchFailed    = errors.New("failed to dispatch SMS")

	// Order errors
	ErrOrderNotFound             = errors.New("order not found")
	ErrPhoneMismatch             = errors.New("phone number does not match the order")
	ErrOrderAlreadyCancelled     = errors.New("order is already cancelled")
	ErrCancellationWindowExpired = errors.New("cancellation window has expired")
	ErrOrderAlreadyDispatched    = errors.New("order has already been dispatched")

	// Delivery errors
	ErrInvalidDeliveryStage = errors.New("unknown delivery stage")
	ErrBackwardTransition   = errors.New("delivery stage cannot move backward")

	// Admin errors
	ErrAdminCredentialsInvalid = errors.New("invalid admin credentials")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CooldownError carries the seconds left until another OTP may be requested.
// It unwraps to ErrOTPCooldownActive so errors.Is checks keep working.
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("an OTP was sent recently, retry in %d seconds", e.Remaining)
}

func (e *CooldownError) Unwrap() error {
	return ErrOTPCooldownActive
}

// AttemptsError carries the guesses left after a wrong OTP code. It unwraps
// to ErrInvalidOTPCode.
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid OTP code, %d attempts remaining", e.Remaining)
}

func (e *AttemptsError) Unwrap() error {
	return ErrInvalidOTPCode
}

func IsInvalidPhone(err error) bool {
	return errors.Is(err, ErrInvalidPhone)
}

func IsOTPCooldownActive(err error) bool {
	return errors.Is(err, ErrOTPCooldownActive)
}

func IsOTPHourlyCapExceeded(err error) bool {
	return errors.Is(err, ErrOTPHourlyCapExceeded)
}

func IsOTPNotFoundOrExpired(err error) bool {
	return errors.Is(err, ErrOTPNotFoundOrExpired)
}

func IsOTPAttemptsExceeded(err error) bool {
	return errors.Is(err, ErrOTPAttemptsExceeded)
}

func IsInvalidOTPCode(err error) bool {
	return errors.Is(err, ErrInvalidOTPCode)
}

func IsSMSDispatchFailed(err error) bool {
	return errors.Is(err, ErrSMSDispatchFailed)
}

func IsOrderNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

func IsPhoneMismatch(err error) bool {
	return errors.Is(err, ErrPhoneMismatch)
}

func IsOrderAlreadyCancelled(err error) bool {
	return errors.Is(err, ErrOrderAlreadyCancelled)
}

func IsCancellationWindowExpired(err error) bool {
	return errors.Is(err, ErrCancellationWindowExpired)
}

func IsOrderAlreadyDispatched(err error) bool {
	return errors.Is(err, ErrOrderAlreadyDispatched)
}

func IsInvalidDeliveryStage(err error) bool {
	return errors.Is(err, ErrInvalidDeliveryStage)
}

func IsBackwardTransition(err error) bool {
	return errors.Is(err, ErrBackwardTransition)
}

func IsAdminCredentialsInvalid(err error) bool {
	return errors.Is(err, ErrAdminCredentialsInvalid)
}
