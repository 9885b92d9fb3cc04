// Package market implements the vAMM state machine: reserves, virtual
// price, open interest, funding-rate dynamics, and per-asset fee pots for
// every tradable market.
package market

import (
	"time"

	"github.com/rtxlabs/vperp/apperror"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// Status is the lifecycle state of a market.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
	StatusClosed Status = "CLOSED"
)

// Side is the direction of a position or order against a market.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

var (
	ErrMarketNotFound  = apperror.New(apperror.NotFound, "MarketNotFound", "market not found")
	ErrDuplicateSymbol = apperror.New(apperror.Conflict, "DuplicateSymbol", "a market with this symbol already exists")
	ErrInvalidReserve  = apperror.New(apperror.Invariant, "InvalidReserve", "reserve must be strictly positive")
	ErrLiquidityCap    = apperror.New(apperror.Validation, "InsufficientLiquidity", "open interest would exceed available liquidity")
)

// Scale factors the reserve arithmetic is defined over. Base is scaled to
// nine decimal places, quote to six; the ratio of the two aligns the scales
// so the derived virtual price reads like a human price.
var (
	baseScale  = decimalx.New(1, 9) // 10^9
	quoteScale = decimalx.New(1, 6) // 10^6
	scaleRatio = decimalx.New(1, 3) // 10^9 / 10^6

	// seedDepthUSD is the virtual depth per side a freshly created market
	// is seeded with.
	seedDepthUSD = decimalx.NewFromInt(1_000_000)
)

const (
	secondsPerDay = 86400

	// convergenceSeconds is the time constant the reserve-shift job uses to
	// walk virtual price toward the oracle price.
	convergenceSeconds = 14400 // 4h

	// convergenceThreshold is the minimum relative price gap that triggers
	// a reserve shift.
	convergenceThresholdNum = "1"
	convergenceThresholdDen = "1000" // 0.001

	defaultMaxFundingRate     = "0.0003"
	defaultMaxFundingVelocity = "0.01"
	defaultBorrowingRate      = "0.0003"
)

// Market is one tradable vAMM instrument.
type Market struct {
	ID            string
	Symbol        string
	TokenAddress  string

	MaxLeverage       decimalx.Decimal
	MaintenanceMargin decimalx.Decimal
	TakerFee          decimalx.Decimal
	MakerFee          decimalx.Decimal

	BorrowingRate       decimalx.Decimal
	FundingRate         decimalx.Decimal
	FundingRateVelocity decimalx.Decimal
	MaxFundingRate      decimalx.Decimal
	MaxFundingVelocity  decimalx.Decimal

	LongOpenInterest   decimalx.Decimal
	ShortOpenInterest  decimalx.Decimal
	AvailableLiquidity decimalx.Decimal

	BaseReserve  decimalx.Decimal
	QuoteReserve decimalx.Decimal
	K            decimalx.Decimal

	CumulativeFeesC1 decimalx.Decimal
	CumulativeFeesC2 decimalx.Decimal
	UnclaimedFeesC1  decimalx.Decimal
	UnclaimedFeesC2  decimalx.Decimal

	Status Status

	LastUpdatedTimestamp time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// clone deep-copies the scalar struct (decimalx.Decimal is a value type, so
// a shallow struct copy is already a deep copy).
func (m *Market) clone() *Market {
	cp := *m
	return &cp
}

// VirtualPrice derives the current AMM price from reserves:
// (quoteReserve * scaleRatio) / baseReserve.
func (m *Market) VirtualPrice() decimalx.Decimal {
	return m.QuoteReserve.Mul(scaleRatio).Div(m.BaseReserve)
}

// PreviewResult is the outcome of simulating an order against current
// reserves without committing it.
type PreviewResult struct {
	SizeInTokens    decimalx.Decimal
	NewBaseReserve  decimalx.Decimal
	ExecutionPrice  decimalx.Decimal
	PriceImpact     decimalx.Decimal
}

// Preview simulates an order of USD size S on side against the market's
// current reserves, without mutating the market. Buying (LONG-open or
// SHORT-close) removes base reserve; selling (SHORT-open or LONG-close)
// adds it. Only the base reserve moves; quote reserve is held fixed and k
// is recomputed lazily on commit — this is the one reserve-management rule
// applied consistently across open, close, preview, and shift.
func (m *Market) Preview(sizeUSD decimalx.Decimal, side Side, closing bool) PreviewResult {
	virtualPrice := m.VirtualPrice()
	sizeInTokens := sizeUSD.Div(virtualPrice).Mul(baseScale)

	buying := (side == Long && !closing) || (side == Short && closing)

	var newBase decimalx.Decimal
	if buying {
		newBase = m.BaseReserve.Sub(sizeInTokens)
	} else {
		newBase = m.BaseReserve.Add(sizeInTokens)
	}

	executionPrice := m.QuoteReserve.Mul(scaleRatio).Div(newBase)
	priceImpact := executionPrice.Sub(virtualPrice).Div(virtualPrice)

	return PreviewResult{
		SizeInTokens:   sizeInTokens,
		NewBaseReserve: newBase,
		ExecutionPrice: executionPrice,
		PriceImpact:    priceImpact,
	}
}

// Commit applies a previously-previewed base-reserve motion, recomputing k.
// Quote reserve is never changed by a commit.
func (m *Market) Commit(newBaseReserve decimalx.Decimal) error {
	if !newBaseReserve.IsPositive() {
		return ErrInvalidReserve
	}
	m.BaseReserve = newBaseReserve
	m.K = m.BaseReserve.Mul(m.QuoteReserve)
	return nil
}

// OpenInterestHeadroom reports how much additional USD notional can be
// opened before availableLiquidity is breached.
func (m *Market) OpenInterestHeadroom() decimalx.Decimal {
	used := m.LongOpenInterest.Add(m.ShortOpenInterest)
	if used.GreaterThanOrEqual(m.AvailableLiquidity) {
		return decimalx.Zero
	}
	return m.AvailableLiquidity.Sub(used)
}

// ApplyOpenInterest adjusts long/short OI by delta (may be negative on
// close) and rejects the mutation if it would breach availableLiquidity.
func (m *Market) ApplyOpenInterest(side Side, delta decimalx.Decimal) error {
	newLong, newShort := m.LongOpenInterest, m.ShortOpenInterest
	if side == Long {
		newLong = newLong.Add(delta)
	} else {
		newShort = newShort.Add(delta)
	}
	if delta.IsPositive() && newLong.Add(newShort).GreaterThan(m.AvailableLiquidity) {
		return ErrLiquidityCap
	}
	m.LongOpenInterest = newLong
	m.ShortOpenInterest = newShort
	return nil
}

// AddTradingFees credits a fee amount in asset to both the cumulative and
// unclaimed pots.
func (m *Market) AddTradingFees(asset ledger.Asset, amount decimalx.Decimal) {
	switch asset {
	case ledger.C1:
		m.CumulativeFeesC1 = m.CumulativeFeesC1.Add(amount)
		m.UnclaimedFeesC1 = m.UnclaimedFeesC1.Add(amount)
	case ledger.C2:
		m.CumulativeFeesC2 = m.CumulativeFeesC2.Add(amount)
		m.UnclaimedFeesC2 = m.UnclaimedFeesC2.Add(amount)
	}
}

// ClaimFees zeros and returns the unclaimed pot for asset; callers are
// responsible for admin-gating this operation.
func (m *Market) ClaimFees(asset ledger.Asset) decimalx.Decimal {
	switch asset {
	case ledger.C1:
		amt := m.UnclaimedFeesC1
		m.UnclaimedFeesC1 = decimalx.Zero
		return amt
	case ledger.C2:
		amt := m.UnclaimedFeesC2
		m.UnclaimedFeesC2 = decimalx.Zero
		return amt
	}
	return decimalx.Zero
}

// FundingUpdate computes the funding-rate fields the once-a-minute job
// persists: a re-clamped rate and a fresh velocity, derived from the
// long/short skew.
func (m *Market) FundingUpdate(now time.Time) (newRate, newVelocity decimalx.Decimal) {
	current := m.CurrentFundingRate(now)

	skew := m.LongOpenInterest.Sub(m.ShortOpenInterest)
	skewScale := m.LongOpenInterest.Add(m.ShortOpenInterest)

	var proportionalSkew decimalx.Decimal
	if skewScale.IsZero() {
		proportionalSkew = decimalx.Zero
	} else {
		proportionalSkew = decimalx.Clamp(skew.Div(skewScale), decimalx.MustParse("-1"), decimalx.MustParse("1"))
	}

	velocity := decimalx.Clamp(
		proportionalSkew.Mul(m.MaxFundingVelocity),
		m.MaxFundingVelocity.Neg(),
		m.MaxFundingVelocity,
	)

	rate := decimalx.Clamp(current, m.MaxFundingRate.Neg(), m.MaxFundingRate)

	return rate, velocity
}

// CurrentFundingRate is the read-side funding rate: the persisted rate
// extrapolated forward by velocity over elapsed time, clamped to
// [-maxFundingRate, maxFundingRate]. Positive means longs pay shorts.
func (m *Market) CurrentFundingRate(now time.Time) decimalx.Decimal {
	elapsedSeconds := now.Sub(m.LastUpdatedTimestamp).Seconds()
	drift := m.FundingRateVelocity.Mul(decimalx.MustParse(formatSeconds(elapsedSeconds))).Div(decimalx.NewFromInt(secondsPerDay))
	current := m.FundingRate.Add(drift)
	return decimalx.Clamp(current, m.MaxFundingRate.Neg(), m.MaxFundingRate)
}

// ConvergenceGap reports the relative distance between the virtual price
// and oraclePrice, signed: positive means virtual is above oracle.
func (m *Market) ConvergenceGap(oraclePrice decimalx.Decimal) decimalx.Decimal {
	vp := m.VirtualPrice()
	return vp.Sub(oraclePrice).Div(oraclePrice)
}

// NeedsConvergence reports whether the relative gap to oraclePrice meets
// the 0.1% threshold the reserve-shift job acts on.
func (m *Market) NeedsConvergence(oraclePrice decimalx.Decimal) bool {
	gap := m.ConvergenceGap(oraclePrice)
	threshold := decimalx.MustParse(convergenceThresholdNum).Div(decimalx.MustParse(convergenceThresholdDen))
	return gap.Abs().GreaterThanOrEqual(threshold)
}

// ConvergeReserves nudges baseReserve toward the oracle price by a
// fraction of the gap proportional to a 10-second tick against the
// convergence time constant, and recomputes k. Quote reserve is untouched.
func (m *Market) ConvergeReserves(oraclePrice decimalx.Decimal) {
	priceDiff := m.ConvergenceGap(oraclePrice)
	tickSeconds := decimalx.NewFromInt(10)
	factor := tickSeconds.Div(decimalx.NewFromInt(convergenceSeconds))
	adjustment := m.BaseReserve.Mul(priceDiff).Mul(factor)
	m.BaseReserve = m.BaseReserve.Add(adjustment)
	m.K = m.BaseReserve.Mul(m.QuoteReserve)
}

func formatSeconds(s float64) string {
	// elapsed wall-clock seconds, formatted without scientific notation;
	// sub-millisecond precision is irrelevant to funding drift.
	return decimalx.NewFromInt(int64(s * 1000)).Div(decimalx.NewFromInt(1000)).String()
}

// New seeds a market at $1,000,000 of virtual depth per side, with the
// virtual price equal to seedPrice (the oracle price at creation time).
func New(id, symbol, tokenAddress string, seedPrice decimalx.Decimal, now time.Time) (*Market, error) {
	if !seedPrice.IsPositive() {
		return nil, ErrInvalidReserve
	}

	baseReserve := seedDepthUSD.Div(seedPrice).Mul(baseScale)
	quoteReserve := seedDepthUSD.Mul(quoteScale)

	return &Market{
		ID:           id,
		Symbol:       symbol,
		TokenAddress: tokenAddress,

		MaxLeverage:       decimalx.NewFromInt(20),
		MaintenanceMargin: decimalx.MustParse("0.05"),
		TakerFee:          decimalx.MustParse("0.001"),
		MakerFee:          decimalx.MustParse("0.0005"),

		BorrowingRate:       decimalx.MustParse(defaultBorrowingRate),
		FundingRate:         decimalx.Zero,
		FundingRateVelocity: decimalx.Zero,
		MaxFundingRate:      decimalx.MustParse(defaultMaxFundingRate),
		MaxFundingVelocity:  decimalx.MustParse(defaultMaxFundingVelocity),

		LongOpenInterest:   decimalx.Zero,
		ShortOpenInterest:  decimalx.Zero,
		AvailableLiquidity: seedDepthUSD.Mul(decimalx.NewFromInt(2)),

		BaseReserve: baseReserve,
		QuoteReserve: quoteReserve,
		K:            baseReserve.Mul(quoteReserve),

		CumulativeFeesC1: decimalx.Zero,
		CumulativeFeesC2: decimalx.Zero,
		UnclaimedFeesC1:  decimalx.Zero,
		UnclaimedFeesC2:  decimalx.Zero,

		Status: StatusActive,

		LastUpdatedTimestamp: now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}
