package client

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

// Errors produced by the client itself or by the gateways it drives.
var (
	ErrUnavailable       = errors.New("ledger unavailable")
	ErrOutcomeUnknown    = errors.New("submission outcome unknown")
	ErrClaimInProgress   = errors.New("a claim is already in flight")
	ErrTreasuryDepleted  = errors.New("treasury cannot fund one session reward")
	ErrNoPendingClaim    = errors.New("no pending claim")
	ErrNoFood            = errors.New("no food of that kind in inventory")
	ErrNoToy             = errors.New("no toy of that kind in inventory")
	ErrNoSelectedPet     = errors.New("no pet selected")
	ErrPetAlive          = errors.New("pet is alive")
	ErrMintedPetTerminal = errors.New("minted pets cannot be revived")
	ErrInvalidConfig     = errors.New("invalid client configuration")
)

// Kind classifies a client-visible failure.
type Kind string

const (
	KindRejected            Kind = "rejected"
	KindWrongNetwork        Kind = "wrong_network"
	KindNetworkError        Kind = "network_error"
	KindInsufficientGas     Kind = "insufficient_gas"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindLedgerRuleViolation Kind = "ledger_rule_violation"
	KindObjectNotFound      Kind = "object_not_found"
	KindUnknown             Kind = "unknown"
	KindPending             Kind = "pending"
	KindInProgress          Kind = "in_progress"
	KindInvalidRequest      Kind = "invalid_request"
)

// Stage names where in the claim pipeline a failure happened.
type Stage string

const (
	StagePreflight Stage = "preflight"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
	StageReconcile Stage = "reconcile"
	StageLocal     Stage = "local"
)

var kindMessages = map[Kind]string{
	KindRejected:            "The signer declined the operation.",
	KindWrongNetwork:        "The wallet is connected to a different network. Switch networks and try again.",
	KindNetworkError:        "The ledger could not be reached. Check your connection and try again.",
	KindInsufficientGas:     "Not enough gas to pay the transaction fee. Request gas from the faucet.",
	KindInsufficientFunds:   "Not enough tokens to pay for this purchase.",
	KindLedgerRuleViolation: "The ledger refused the claim.",
	KindObjectNotFound:      "A ledger object was not found. Refreshing and retrying may help.",
	KindUnknown:             "Something went wrong. Please try again.",
	KindPending:             "The transaction was sent but not yet confirmed. It will be checked again before any resubmission.",
	KindInProgress:          "A claim is already in progress.",
	KindInvalidRequest:      "The request is not valid.",
}

var retryableKinds = map[Kind]bool{
	KindNetworkError:   true,
	KindObjectNotFound: true,
	KindUnknown:        true,
}

// Error is a classified client failure.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Detail  map[string]string
	Err     error
}

func (clientError *Error) Error() string {
	if clientError.Err == nil {
		return fmt.Sprintf("%s (%s): %s", clientError.Kind, clientError.Stage, clientError.Message)
	}
	return fmt.Sprintf("%s (%s): %v", clientError.Kind, clientError.Stage, clientError.Err)
}

func (clientError *Error) Unwrap() error {
	return clientError.Err
}

// CanRetry reports whether repeating the operation may succeed.
func (clientError *Error) CanRetry() bool {
	return retryableKinds[clientError.Kind]
}

// Classify turns any failure into a *Error. It never inspects error text.
func Classify(stage Stage, err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	var violation *economy.RuleViolation
	if errors.As(err, &violation) {
		return &Error{
			Kind:    KindLedgerRuleViolation,
			Stage:   stage,
			Message: violationMessage(violation),
			Detail: map[string]string{
				"rule":      string(violation.Rule),
				"limit":     strconv.FormatUint(violation.Limit, 10),
				"used":      strconv.FormatUint(violation.Used, 10),
				"remaining": strconv.FormatUint(violation.Remaining, 10),
			},
			Err: err,
		}
	}
	kind := classifyKind(err)
	return &Error{Kind: kind, Stage: stage, Message: kindMessages[kind], Err: err}
}

func classifyKind(err error) Kind {
	switch {
	case errors.Is(err, ErrClaimInProgress):
		return KindInProgress
	case errors.Is(err, ErrOutcomeUnknown):
		return KindPending
	case errors.Is(err, signer.ErrRejected):
		return KindRejected
	case errors.Is(err, economy.ErrWrongNetwork):
		return KindWrongNetwork
	case errors.Is(err, ErrUnavailable):
		return KindNetworkError
	case errors.Is(err, economy.ErrInsufficientGas), errors.Is(err, economy.ErrGasBudgetTooLow):
		return KindInsufficientGas
	case errors.Is(err, economy.ErrInsufficientFunds), errors.Is(err, economy.ErrPaymentBelowPrice):
		return KindInsufficientFunds
	case errors.Is(err, economy.ErrRuleViolation), errors.Is(err, ErrTreasuryDepleted):
		return KindLedgerRuleViolation
	case errors.Is(err, economy.ErrObjectNotFound), errors.Is(err, economy.ErrStaleObject):
		return KindObjectNotFound
	case errors.Is(err, economy.ErrInvalidAmount),
		errors.Is(err, economy.ErrInvalidAddress),
		errors.Is(err, economy.ErrInvalidItemID),
		errors.Is(err, economy.ErrInvalidSpeciesID),
		errors.Is(err, economy.ErrInvalidQuantity),
		errors.Is(err, economy.ErrInvalidIdempotencyKey),
		errors.Is(err, economy.ErrInvalidObjectID),
		errors.Is(err, economy.ErrInvalidPriceCategory),
		errors.Is(err, economy.ErrInvalidCall),
		errors.Is(err, economy.ErrRecipientMatchesSender),
		errors.Is(err, economy.ErrFaucetCooldown),
		errors.Is(err, economy.ErrNotOwner),
		errors.Is(err, economy.ErrUnauthorized),
		errors.Is(err, ErrNoFood),
		errors.Is(err, ErrNoToy),
		errors.Is(err, ErrNoSelectedPet),
		errors.Is(err, ErrNoPendingClaim),
		errors.Is(err, ErrPetAlive),
		errors.Is(err, ErrMintedPetTerminal):
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

func violationMessage(violation *economy.RuleViolation) string {
	switch violation.Rule {
	case economy.RuleDailyCap:
		return fmt.Sprintf("Daily earning cap reached: %s of %s tokens earned today, %s remaining.",
			economy.Amount(violation.Used).Tokens(), economy.Amount(violation.Limit).Tokens(), economy.Amount(violation.Remaining).Tokens())
	case economy.RuleSessionLimit:
		return fmt.Sprintf("Daily session limit reached: %d of %d sessions claimed today.", violation.Used, violation.Limit)
	case economy.RuleTreasuryUnderfunded:
		return fmt.Sprintf("The treasury holds %s tokens and cannot pay %s. An administrator needs to fund it.",
			economy.Amount(violation.Remaining).Tokens(), economy.Amount(violation.Limit).Tokens())
	default:
		return kindMessages[KindLedgerRuleViolation]
	}
}
