package economy

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the economy service.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidAddress          = errors.New("invalid address")
	ErrInvalidIdempotencyKey   = errors.New("invalid idempotency key")
	ErrInvalidObjectID         = errors.New("invalid object id")
	ErrInvalidItemID           = errors.New("invalid item id")
	ErrInvalidSpeciesID        = errors.New("invalid species id")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidPriceCategory    = errors.New("invalid price category")
	ErrInvalidCall             = errors.New("invalid call")
	ErrInvalidSubmission       = errors.New("invalid submission")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidGenesis          = errors.New("invalid genesis")
	ErrUnauthorized            = errors.New("sender is not the administrator")
	ErrNotOwner                = errors.New("sender does not own the object")
	ErrObjectNotFound          = errors.New("object not found")
	ErrStaleObject             = errors.New("stale object version")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrPaymentBelowPrice       = errors.New("payment below price")
	ErrInsufficientGas         = errors.New("insufficient gas")
	ErrGasBudgetTooLow         = errors.New("gas budget below required fee")
	ErrWrongNetwork            = errors.New("wrong network")
	ErrFaucetCooldown          = errors.New("faucet cooldown active")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrUnknownTransaction      = errors.New("unknown transaction")
	ErrRuleViolation           = errors.New("ledger rule violation")
	ErrDailyCapReached         = errors.New("daily earning cap reached")
	ErrSessionLimitReached     = errors.New("daily session limit reached")
	ErrTreasuryUnderfunded     = errors.New("treasury underfunded")
	ErrArithmeticOverflow      = errors.New("arithmetic overflow")
	ErrUnsupportedCallKind     = errors.New("unsupported call kind")
	ErrRecipientMatchesSender  = errors.New("recipient matches sender")
)

// Rule names the ledger limit a claim ran into.
type Rule string

const (
	RuleDailyCap            Rule = "daily_cap"
	RuleSessionLimit        Rule = "session_limit"
	RuleTreasuryUnderfunded Rule = "treasury_underfunded"
)

// RuleViolation reports which limit rejected a claim and how much of it is left.
type RuleViolation struct {
	Rule      Rule
	Limit     uint64
	Used      uint64
	Remaining uint64
}

// Error returns the formatted violation.
func (violation *RuleViolation) Error() string {
	return fmt.Sprintf("%s: %s (limit %d, used %d, remaining %d)", ErrRuleViolation, violation.Rule, violation.Limit, violation.Used, violation.Remaining)
}

// Unwrap exposes both the generic and the rule-specific sentinel.
func (violation *RuleViolation) Unwrap() []error {
	return []error{ErrRuleViolation, violation.sentinel()}
}

func (violation *RuleViolation) sentinel() error {
	switch violation.Rule {
	case RuleDailyCap:
		return ErrDailyCapReached
	case RuleSessionLimit:
		return ErrSessionLimitReached
	case RuleTreasuryUnderfunded:
		return ErrTreasuryUnderfunded
	default:
		return ErrRuleViolation
	}
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
