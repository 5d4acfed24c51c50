package economyv1

import (
	"errors"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"google.golang.org/grpc/codes"
)

// ErrorDomain is the errdetails.ErrorInfo domain of every status this API returns.
const ErrorDomain = "focusledger.economy.v1"

// Stable error reasons carried in errdetails.ErrorInfo.
const (
	ReasonInvalidAmount          = "invalid_amount"
	ReasonInvalidAddress         = "invalid_address"
	ReasonInvalidIdempotencyKey  = "invalid_idempotency_key"
	ReasonInvalidObjectID        = "invalid_object_id"
	ReasonInvalidItemID          = "invalid_item_id"
	ReasonInvalidSpeciesID       = "invalid_species_id"
	ReasonInvalidQuantity        = "invalid_quantity"
	ReasonInvalidPriceCategory   = "invalid_price_category"
	ReasonInvalidCall            = "invalid_call"
	ReasonInvalidSubmission      = "invalid_submission"
	ReasonUnsupportedCallKind    = "unsupported_call_kind"
	ReasonRecipientMatchesSender = "recipient_matches_sender"
	ReasonInvalidEnvelope        = "invalid_envelope"
	ReasonUnauthorized           = "unauthorized"
	ReasonNotOwner               = "not_owner"
	ReasonObjectNotFound         = "object_not_found"
	ReasonUnknownTransaction     = "unknown_transaction"
	ReasonStaleObject            = "stale_object"
	ReasonInsufficientFunds      = "insufficient_funds"
	ReasonPaymentBelowPrice      = "payment_below_price"
	ReasonInsufficientGas        = "insufficient_gas"
	ReasonGasBudgetTooLow        = "gas_budget_too_low"
	ReasonWrongNetwork           = "wrong_network"
	ReasonDuplicateKey           = "duplicate_idempotency_key"
	ReasonFaucetCooldown         = "faucet_cooldown"
	ReasonRateLimited            = "rate_limited"
	ReasonArithmeticOverflow     = "arithmetic_overflow"
	ReasonInternal               = "internal"
)

// ErrorInfo metadata keys.
const (
	MetadataRule       = "rule"
	MetadataLimit      = "limit"
	MetadataUsed       = "used"
	MetadataRemaining  = "remaining"
	MetadataRetryAfter = "retry_after_ms"
)

// ErrorMapping binds a ledger sentinel to its status code and reason.
type ErrorMapping struct {
	Err    error
	Code   codes.Code
	Reason string
}

var errorMappings = []ErrorMapping{
	{Err: economy.ErrInvalidAmount, Code: codes.InvalidArgument, Reason: ReasonInvalidAmount},
	{Err: economy.ErrInvalidAddress, Code: codes.InvalidArgument, Reason: ReasonInvalidAddress},
	{Err: economy.ErrInvalidIdempotencyKey, Code: codes.InvalidArgument, Reason: ReasonInvalidIdempotencyKey},
	{Err: economy.ErrInvalidObjectID, Code: codes.InvalidArgument, Reason: ReasonInvalidObjectID},
	{Err: economy.ErrInvalidItemID, Code: codes.InvalidArgument, Reason: ReasonInvalidItemID},
	{Err: economy.ErrInvalidSpeciesID, Code: codes.InvalidArgument, Reason: ReasonInvalidSpeciesID},
	{Err: economy.ErrInvalidQuantity, Code: codes.InvalidArgument, Reason: ReasonInvalidQuantity},
	{Err: economy.ErrInvalidPriceCategory, Code: codes.InvalidArgument, Reason: ReasonInvalidPriceCategory},
	{Err: economy.ErrInvalidCall, Code: codes.InvalidArgument, Reason: ReasonInvalidCall},
	{Err: economy.ErrInvalidSubmission, Code: codes.InvalidArgument, Reason: ReasonInvalidSubmission},
	{Err: economy.ErrUnsupportedCallKind, Code: codes.InvalidArgument, Reason: ReasonUnsupportedCallKind},
	{Err: economy.ErrRecipientMatchesSender, Code: codes.InvalidArgument, Reason: ReasonRecipientMatchesSender},
	{Err: economy.ErrUnauthorized, Code: codes.PermissionDenied, Reason: ReasonUnauthorized},
	{Err: economy.ErrNotOwner, Code: codes.PermissionDenied, Reason: ReasonNotOwner},
	{Err: economy.ErrObjectNotFound, Code: codes.NotFound, Reason: ReasonObjectNotFound},
	{Err: economy.ErrUnknownTransaction, Code: codes.NotFound, Reason: ReasonUnknownTransaction},
	{Err: economy.ErrStaleObject, Code: codes.Aborted, Reason: ReasonStaleObject},
	{Err: economy.ErrInsufficientFunds, Code: codes.FailedPrecondition, Reason: ReasonInsufficientFunds},
	{Err: economy.ErrPaymentBelowPrice, Code: codes.FailedPrecondition, Reason: ReasonPaymentBelowPrice},
	{Err: economy.ErrInsufficientGas, Code: codes.FailedPrecondition, Reason: ReasonInsufficientGas},
	{Err: economy.ErrGasBudgetTooLow, Code: codes.FailedPrecondition, Reason: ReasonGasBudgetTooLow},
	{Err: economy.ErrWrongNetwork, Code: codes.FailedPrecondition, Reason: ReasonWrongNetwork},
	{Err: economy.ErrDuplicateIdempotencyKey, Code: codes.AlreadyExists, Reason: ReasonDuplicateKey},
	{Err: economy.ErrFaucetCooldown, Code: codes.ResourceExhausted, Reason: ReasonFaucetCooldown},
	{Err: economy.ErrArithmeticOverflow, Code: codes.OutOfRange, Reason: ReasonArithmeticOverflow},
}

var ruleErrors = map[economy.Rule]error{
	economy.RuleDailyCap:            economy.ErrDailyCapReached,
	economy.RuleSessionLimit:        economy.ErrSessionLimitReached,
	economy.RuleTreasuryUnderfunded: economy.ErrTreasuryUnderfunded,
}

// MappingFor returns the mapping of the first sentinel err wraps.
func MappingFor(err error) (ErrorMapping, bool) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.Err) {
			return mapping, true
		}
	}
	return ErrorMapping{}, false
}

// ErrorForReason returns the sentinel for a reason, or nil when the reason is not a ledger sentinel.
func ErrorForReason(reason string) error {
	for _, mapping := range errorMappings {
		if mapping.Reason == reason {
			return mapping.Err
		}
	}
	return nil
}

// RuleError returns the sentinel a rule violation unwraps to.
func RuleError(rule economy.Rule) (error, bool) {
	err, ok := ruleErrors[rule]
	return err, ok
}
