package economy

import (
	"context"
	"errors"
	"fmt"
)

// ClaimRequest parameterizes a session-reward claim.
type ClaimRequest struct {
	// IdempotencyKey identifies the logical claim; a repeated key replays the original payout.
	IdempotencyKey string
	// TreasuryVersion, when non-zero, must match the current treasury version.
	TreasuryVersion uint64
}

// FundTreasury moves payment from the administrator's balance into the treasury.
func (service *Service) FundTreasury(ctx context.Context, sender Address, payment Amount) (Treasury, error) {
	effects, err := service.run(ctx, sender, Call{Kind: CallFundTreasury, Payment: payment})
	if err != nil {
		return Treasury{}, err
	}
	return *effects.Treasury, nil
}

// ClaimSessionReward pays one completed session out of the treasury, subject to
// the daily session limit, the daily earning cap and treasury solvency.
func (service *Service) ClaimSessionReward(ctx context.Context, sender Address, request ClaimRequest) (Payout, error) {
	effects, err := service.run(ctx, sender, Call{
		Kind:            CallClaimSessionReward,
		IdempotencyKey:  request.IdempotencyKey,
		TreasuryVersion: request.TreasuryVersion,
	})
	if err != nil {
		return Payout{}, err
	}
	return *effects.Payout, nil
}

func (service *Service) fundTreasury(ctx context.Context, txStore Store, sender Address, call Call) (Effects, error) {
	if call.Payment == 0 {
		return Effects{}, fmt.Errorf("%w: payment must be greater than zero", ErrInvalidAmount)
	}
	treasury, err := txStore.GetTreasury(ctx)
	if err != nil {
		return Effects{}, err
	}
	if treasury.Admin != sender {
		return Effects{}, ErrUnauthorized
	}
	account, err := loadAccount(ctx, txStore, sender)
	if err != nil {
		return Effects{}, err
	}
	if account.TokenBalance < call.Payment {
		return Effects{}, fmt.Errorf("%w: balance %d, payment %d", ErrInsufficientFunds, account.TokenBalance, call.Payment)
	}
	account.TokenBalance -= call.Payment
	if _, err := txStore.SaveAccount(ctx, account); err != nil {
		return Effects{}, err
	}
	treasury.Balance, err = treasury.Balance.Add(call.Payment)
	if err != nil {
		return Effects{}, err
	}
	saved, err := txStore.SaveTreasury(ctx, treasury)
	if err != nil {
		return Effects{}, err
	}
	return Effects{Treasury: &saved}, nil
}

func (service *Service) claimSessionReward(ctx context.Context, txStore Store, sender Address, call Call, digest string, nowUnixMilli int64) (Effects, error) {
	idempotencyKey, err := NormalizeIdempotencyKey(call.IdempotencyKey)
	if err != nil {
		return Effects{}, err
	}
	existing, err := txStore.GetPayout(ctx, sender, idempotencyKey)
	if err == nil {
		return Effects{PaidAmount: existing.Amount, Replayed: true, Payout: &existing}, nil
	}
	if !errors.Is(err, ErrObjectNotFound) {
		return Effects{}, err
	}

	treasury, err := txStore.GetTreasury(ctx)
	if err != nil {
		return Effects{}, err
	}
	if call.TreasuryVersion != 0 && call.TreasuryVersion != treasury.Version {
		return Effects{}, fmt.Errorf("%w: treasury version %d, current %d", ErrStaleObject, call.TreasuryVersion, treasury.Version)
	}
	config, err := txStore.GetEconomyConfig(ctx)
	if err != nil {
		return Effects{}, err
	}

	day := DayOf(nowUnixMilli)
	record, err := txStore.GetDailyRecord(ctx, sender)
	if errors.Is(err, ErrObjectNotFound) {
		record = DailyEarningRecord{Address: sender, Day: day}
	} else if err != nil {
		return Effects{}, err
	}
	if record.Day != day {
		record.Day = day
		record.AmountEarnedToday = 0
		record.SessionsToday = 0
	}

	if record.SessionsToday >= config.DailySessionLimit {
		return Effects{}, &RuleViolation{
			Rule:      RuleSessionLimit,
			Limit:     uint64(config.DailySessionLimit),
			Used:      uint64(record.SessionsToday),
			Remaining: 0,
		}
	}
	if record.AmountEarnedToday >= config.DailyCap {
		return Effects{}, &RuleViolation{
			Rule:      RuleDailyCap,
			Limit:     config.DailyCap.Uint64(),
			Used:      record.AmountEarnedToday.Uint64(),
			Remaining: 0,
		}
	}
	payout := computePayout(config.SessionReward, sessionBonus(record), config.DailyCap-record.AmountEarnedToday)
	if treasury.Balance < payout {
		return Effects{}, &RuleViolation{
			Rule:      RuleTreasuryUnderfunded,
			Limit:     payout.Uint64(),
			Used:      0,
			Remaining: treasury.Balance.Uint64(),
		}
	}

	treasury.Balance -= payout
	treasury.TotalPaid, err = treasury.TotalPaid.Add(payout)
	if err != nil {
		return Effects{}, err
	}
	treasury.TotalPayouts++
	record.AmountEarnedToday += payout
	record.SessionsToday++

	savedTreasury, err := txStore.SaveTreasury(ctx, treasury)
	if err != nil {
		return Effects{}, err
	}
	savedRecord, err := txStore.SaveDailyRecord(ctx, record)
	if err != nil {
		return Effects{}, err
	}
	account, err := loadAccount(ctx, txStore, sender)
	if err != nil {
		return Effects{}, err
	}
	account.TokenBalance, err = account.TokenBalance.Add(payout)
	if err != nil {
		return Effects{}, err
	}
	if _, err := txStore.SaveAccount(ctx, account); err != nil {
		return Effects{}, err
	}
	payoutRecord := Payout{
		Recipient:         sender,
		IdempotencyKey:    idempotencyKey,
		Amount:            payout,
		Day:               savedRecord.Day,
		AmountEarnedToday: savedRecord.AmountEarnedToday,
		SessionsToday:     savedRecord.SessionsToday,
		TransactionDigest: digest,
		PaidUnixMilli:     nowUnixMilli,
	}
	if err := txStore.InsertPayout(ctx, payoutRecord); err != nil {
		return Effects{}, err
	}
	return Effects{PaidAmount: payout, Payout: &payoutRecord, Treasury: &savedTreasury}, nil
}

// sessionBonus is reserved for streak rewards and currently always zero.
func sessionBonus(DailyEarningRecord) Amount {
	return 0
}

func computePayout(sessionReward Amount, bonus Amount, remainingCap Amount) Amount {
	requested := sessionReward + bonus
	if requested < sessionReward {
		requested = remainingCap
	}
	if requested > remainingCap {
		return remainingCap
	}
	return requested
}
