package vault

import (
	protoerrors "stakevault/core/errors"
	"stakevault/core/events"
)

// RewardSplit is the outcome of distributing one balance report.
type RewardSplit struct {
	Rewards        uint64
	ProtocolFee    uint64
	OperatorFee    uint64
	StakerRewards  uint64
	FeeShares      uint64
	ProtocolShares uint64
	OperatorShares uint64
}

// SplitRewards divides rewards between the treasury, the operator and the
// stakers. Fee shares are priced at the pre-report exchange rate given by
// totalShares and totalAssets; they are zero when either is zero.
func SplitRewards(rewards uint64, protocolFeeBps, operatorFeeBps uint16, totalShares, totalAssets uint64) (RewardSplit, error) {
	split := RewardSplit{Rewards: rewards}
	if rewards == 0 {
		return split, nil
	}
	protocolFee, err := MulDiv(rewards, uint64(protocolFeeBps), BasisPoints)
	if err != nil {
		return RewardSplit{}, err
	}
	remainder, err := Sub(rewards, protocolFee)
	if err != nil {
		return RewardSplit{}, err
	}
	operatorFee, err := MulDiv(remainder, uint64(operatorFeeBps), BasisPoints)
	if err != nil {
		return RewardSplit{}, err
	}
	stakerRewards, err := Sub(remainder, operatorFee)
	if err != nil {
		return RewardSplit{}, err
	}
	feeTotal, err := Add(protocolFee, operatorFee)
	if err != nil {
		return RewardSplit{}, err
	}
	split.ProtocolFee = protocolFee
	split.OperatorFee = operatorFee
	split.StakerRewards = stakerRewards

	if feeTotal == 0 || totalShares == 0 || totalAssets == 0 {
		return split, nil
	}
	feeShares, err := MulDiv(feeTotal, totalShares, totalAssets)
	if err != nil {
		return RewardSplit{}, err
	}
	protocolShares, err := MulDiv(feeShares, protocolFee, feeTotal)
	if err != nil {
		return RewardSplit{}, err
	}
	operatorShares, err := Sub(feeShares, protocolShares)
	if err != nil {
		return RewardSplit{}, err
	}
	split.FeeShares = feeShares
	split.ProtocolShares = protocolShares
	split.OperatorShares = operatorShares
	return split, nil
}

// ReportBalance records the staked balance observed by the external staking
// process and distributes the growth as rewards. The caller must be the vault
// operator or the registry authority. A report equal to the current balance
// is a no-op and returns a zero split.
func (e *Engine) ReportBalance(caller [20]byte, vaultID uint64, newTotalStaked uint64) (RewardSplit, error) {
	if err := e.ready(); err != nil {
		return RewardSplit{}, err
	}
	registry, err := e.loadRegistry()
	if err != nil {
		return RewardSplit{}, err
	}
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return RewardSplit{}, err
	}
	if caller != vault.Operator && caller != registry.Authority {
		return RewardSplit{}, protoerrors.ErrUnauthorized
	}
	if newTotalStaked < vault.TotalStaked {
		return RewardSplit{}, protoerrors.ErrBalanceDecreased
	}
	rewards := newTotalStaked - vault.TotalStaked
	if rewards == 0 {
		return RewardSplit{}, nil
	}

	split, err := SplitRewards(rewards, registry.ProtocolFeeBps, vault.FeeBps, vault.TotalShares, vault.TotalAssets)
	if err != nil {
		return RewardSplit{}, err
	}
	assets, err := Add(vault.TotalAssets, rewards)
	if err != nil {
		return RewardSplit{}, err
	}
	shares, err := Add(vault.TotalShares, split.FeeShares)
	if err != nil {
		return RewardSplit{}, err
	}
	lifetime, err := Add(vault.LifetimeRewards, rewards)
	if err != nil {
		return RewardSplit{}, err
	}
	current := e.clock.Epoch()
	vault.TotalStaked = newTotalStaked
	vault.TotalAssets = assets
	vault.TotalShares = shares
	vault.LifetimeRewards = lifetime
	vault.LastRewardEpoch = current
	rate, err := vault.ExchangeRate()
	if err != nil {
		return RewardSplit{}, err
	}

	if split.OperatorShares > 0 {
		if err := e.ledger.Mint(vault.ShareMint, vault.Operator, split.OperatorShares); err != nil {
			return RewardSplit{}, err
		}
	}
	if split.ProtocolShares > 0 {
		if err := e.ledger.Mint(vault.ShareMint, registry.Treasury, split.ProtocolShares); err != nil {
			return RewardSplit{}, err
		}
	}
	if err := e.state.PutVault(vault); err != nil {
		return RewardSplit{}, err
	}
	e.emitter.Emit(events.RewardsDistributed{
		VaultID:         vaultID,
		Epoch:           current,
		TotalRewards:    rewards,
		ProtocolFee:     split.ProtocolFee,
		OperatorFee:     split.OperatorFee,
		StakerRewards:   split.StakerRewards,
		ProtocolShares:  split.ProtocolShares,
		OperatorShares:  split.OperatorShares,
		NewExchangeRate: rate,
	})
	return split, nil
}
