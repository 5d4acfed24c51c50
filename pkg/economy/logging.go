package economy

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation      string
	Sender         Address
	Digest         string
	IdempotencyKey string
	Amount         Amount
	ObjectID       ObjectID
	Replayed       bool
	Status         string
	Error          error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithNetwork sets the network name submissions must be bound to.
func WithNetwork(network string) ServiceOption {
	return func(service *Service) {
		service.network = network
	}
}

// WithGasPerCall sets the fee charged for every executed submission.
func WithGasPerCall(gas uint64) ServiceOption {
	return func(service *Service) {
		service.gasPerCall = gas
	}
}

// WithFaucet configures the gas faucet amount and cooldown in milliseconds.
func WithFaucet(amount uint64, cooldownMillis int64) ServiceOption {
	return func(service *Service) {
		service.faucetAmount = amount
		service.faucetCooldownMillis = cooldownMillis
	}
}

// WithObjectIDGenerator replaces the generator used for minted objects.
func WithObjectIDGenerator(generator func() ObjectID) ServiceOption {
	return func(service *Service) {
		service.newObjectID = generator
	}
}
