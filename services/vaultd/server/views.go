package server

import (
	"stakevault/core"
	"stakevault/crypto"
	"stakevault/native/cdp"
	"stakevault/native/vault"
)

type registryView struct {
	Authority      string `json:"authority"`
	Treasury       string `json:"treasury"`
	VaultCount     uint64 `json:"vault_count"`
	ProtocolFeeBps uint16 `json:"protocol_fee_bps"`
	Paused         bool   `json:"paused"`
	SyntheticMint  string `json:"synthetic_mint"`
	Controller     string `json:"controller"`
}

func newRegistryView(r *vault.Registry) registryView {
	return registryView{
		Authority:      crypto.FormatIdentity(r.Authority),
		Treasury:       crypto.FormatIdentity(r.Treasury),
		VaultCount:     r.VaultCount,
		ProtocolFeeBps: r.ProtocolFeeBps,
		Paused:         r.Paused,
		SyntheticMint:  custody(r.SyntheticMint),
		Controller:     custody(r.Controller),
	}
}

type vaultView struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	Operator          string `json:"operator"`
	ShareMint         string `json:"share_mint"`
	Custody           string `json:"custody"`
	FeeBps            uint16 `json:"fee_bps"`
	MaxCapacity       amount `json:"max_capacity"`
	TotalStaked       amount `json:"total_staked"`
	BufferedLiquidity amount `json:"buffered_liquidity"`
	TotalShares       amount `json:"total_shares"`
	TotalAssets       amount `json:"total_assets"`
	ExchangeRate      amount `json:"exchange_rate"`
	LastRewardEpoch   uint64 `json:"last_reward_epoch"`
	AcceptingDeposits bool   `json:"accepting_deposits"`
	ActiveValidators  uint16 `json:"active_validators"`
	LifetimeRewards   amount `json:"lifetime_rewards"`
}

func newVaultView(v *vault.Vault) (vaultView, error) {
	rate, err := v.ExchangeRate()
	if err != nil {
		return vaultView{}, err
	}
	return vaultView{
		ID:                v.ID,
		Name:              v.Name,
		Operator:          crypto.FormatIdentity(v.Operator),
		ShareMint:         custody(v.ShareMint),
		Custody:           custody(vault.Custody(v.ID)),
		FeeBps:            v.FeeBps,
		MaxCapacity:       amount(v.MaxCapacity),
		TotalStaked:       amount(v.TotalStaked),
		BufferedLiquidity: amount(v.BufferedLiquidity),
		TotalShares:       amount(v.TotalShares),
		TotalAssets:       amount(v.TotalAssets),
		ExchangeRate:      amount(rate),
		LastRewardEpoch:   v.LastRewardEpoch,
		AcceptingDeposits: v.AcceptingDeposits,
		ActiveValidators:  v.ActiveValidators,
		LifetimeRewards:   amount(v.LifetimeRewards),
	}, nil
}

type controllerView struct {
	TotalMinted          amount `json:"total_minted"`
	TotalCollateralValue amount `json:"total_collateral_value"`
	MinCollateralRatio   uint64 `json:"min_collateral_ratio_bps"`
	LiquidationThreshold uint64 `json:"liquidation_threshold_bps"`
	LiquidationBonus     uint64 `json:"liquidation_bonus_bps"`
	ActivePositions      uint64 `json:"active_positions"`
	CollateralRatio      amount `json:"collateral_ratio_bps"`
}

func newControllerView(c *cdp.Controller, ratio uint64) controllerView {
	return controllerView{
		TotalMinted:          amount(c.TotalMinted),
		TotalCollateralValue: amount(c.TotalCollateralValue),
		MinCollateralRatio:   c.MinCollateralRatio,
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		ActivePositions:      c.ActivePositions,
		CollateralRatio:      amount(ratio),
	}
}

type positionView struct {
	Owner           string `json:"owner"`
	VaultID         uint64 `json:"vault_id"`
	Custody         string `json:"custody"`
	Collateral      amount `json:"collateral"`
	Debt            amount `json:"debt"`
	LastUpdateEpoch uint64 `json:"last_update_epoch"`
	Ratio           amount `json:"collateral_ratio_bps"`
	Liquidatable    bool   `json:"liquidatable"`
}

func newPositionView(p *cdp.Position, health core.PositionHealth) positionView {
	return positionView{
		Owner:           crypto.FormatIdentity(p.Owner),
		VaultID:         p.VaultID,
		Custody:         custody(cdp.PositionCustody(p.Owner, p.VaultID)),
		Collateral:      amount(p.Collateral),
		Debt:            amount(p.Debt),
		LastUpdateEpoch: p.LastUpdateEpoch,
		Ratio:           amount(health.Ratio),
		Liquidatable:    health.Liquidatable,
	}
}

type ticketView struct {
	VaultID           uint64 `json:"vault_id"`
	User              string `json:"user"`
	TicketID          uint64 `json:"ticket_id"`
	SharesBurned      amount `json:"shares_burned"`
	ExpectedLiquidity amount `json:"expected_liquidity"`
	RequestEpoch      uint64 `json:"request_epoch"`
	ReadyToClaim      bool   `json:"ready_to_claim"`
	Claimed           bool   `json:"claimed"`
	// Claimable is evaluated against the vault's current buffer; ReadyToClaim
	// is the value recorded at request time.
	Claimable bool `json:"claimable"`
}

func newTicketView(t *vault.WithdrawalTicket, claimable bool) ticketView {
	return ticketView{
		Claimable:         claimable,
		VaultID:           t.VaultID,
		User:              crypto.FormatIdentity(t.User),
		TicketID:          t.TicketID,
		SharesBurned:      amount(t.SharesBurned),
		ExpectedLiquidity: amount(t.ExpectedLiquidity),
		RequestEpoch:      t.RequestEpoch,
		ReadyToClaim:      t.ReadyToClaim,
		Claimed:           t.Claimed,
	}
}

type splitView struct {
	Rewards        amount `json:"rewards"`
	ProtocolFee    amount `json:"protocol_fee"`
	OperatorFee    amount `json:"operator_fee"`
	StakerRewards  amount `json:"staker_rewards"`
	ProtocolShares amount `json:"protocol_shares"`
	OperatorShares amount `json:"operator_shares"`
}

func newSplitView(s vault.RewardSplit) splitView {
	return splitView{
		Rewards:        amount(s.Rewards),
		ProtocolFee:    amount(s.ProtocolFee),
		OperatorFee:    amount(s.OperatorFee),
		StakerRewards:  amount(s.StakerRewards),
		ProtocolShares: amount(s.ProtocolShares),
		OperatorShares: amount(s.OperatorShares),
	}
}

type shareBalance struct {
	VaultID uint64 `json:"vault_id"`
	Shares  amount `json:"shares"`
}

type balancesView struct {
	Owner     string         `json:"owner"`
	Base      amount         `json:"base"`
	Synthetic amount         `json:"synthetic"`
	Shares    []shareBalance `json:"shares"`
}
