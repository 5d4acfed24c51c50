package economyv1

import "github.com/MarkoPoloResearchLab/focusledger/pkg/economy"

type GetNetworkRequest struct{}

type GetNetworkResponse struct {
	Network    string `json:"network"`
	GasPerCall uint64 `json:"gasPerCall"`
}

// SubmitRequest carries a signed call envelope.
type SubmitRequest struct {
	Token string `json:"token"`
}

type SubmitResponse struct {
	Transaction economy.TransactionRecord `json:"transaction"`
}

type GetTransactionRequest struct {
	Digest string `json:"digest"`
}

type GetTransactionResponse struct {
	Transaction economy.TransactionRecord `json:"transaction"`
}

type GetTreasuryRequest struct{}

type GetTreasuryResponse struct {
	Treasury economy.Treasury `json:"treasury"`
}

type GetEconomyConfigRequest struct{}

type GetEconomyConfigResponse struct {
	Config economy.EconomyConfig `json:"config"`
}

type GetAccountRequest struct {
	Address string `json:"address"`
}

type GetAccountResponse struct {
	Account economy.Account `json:"account"`
}

type GetDailyRecordRequest struct {
	Address string `json:"address"`
}

type GetDailyRecordResponse struct {
	Record economy.DailyEarningRecord `json:"record"`
}

type GetPayoutRequest struct {
	Address        string `json:"address"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type GetPayoutResponse struct {
	Payout economy.Payout `json:"payout"`
}

type GetPetRequest struct {
	PetID string `json:"petId"`
}

type GetPetResponse struct {
	Pet economy.PetRecord `json:"pet"`
}

type ListPetsRequest struct {
	Owner string `json:"owner"`
}

type ListPetsResponse struct {
	Pets []economy.PetRecord `json:"pets"`
}

type ListToysRequest struct {
	Owner string `json:"owner"`
}

type ListToysResponse struct {
	Toys []economy.Toy `json:"toys"`
}

type RequestGasRequest struct {
	Address string `json:"address"`
}

type RequestGasResponse struct {
	Account economy.Account `json:"account"`
}
