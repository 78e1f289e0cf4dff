package slab

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// SlabMagic is the 8-byte constant at offset 0 of every slab account:
// the ASCII bytes "PERCSLAB" read as a little-endian u64.
const SlabMagic uint64 = 0x42414c5343524550

// Header flag bits.
const (
	flagResolved = 1 << 0
	flagPaused   = 1 << 1
)

// Header field offsets. The 24-byte reserved region at the tail is reused
// across protocol revisions: nonce and the last threshold update slot were
// added there without changing the struct size, so consumers that only read
// the original fields keep working.
const (
	hdrMagic        = 0
	hdrVersion      = 8
	hdrBump         = 12
	hdrFlags        = 13
	hdrAdmin        = 16
	hdrPendingAdmin = 48
	hdrNonce        = 80
	hdrLastThreshold = 88
)

// Header is the fixed 104-byte slab prefix. Decoded fresh on every call.
type Header struct {
	Version                 uint32
	Bump                    uint8
	Resolved                bool
	Paused                  bool
	Admin                   solana.PublicKey
	PendingAdmin            solana.PublicKey
	Nonce                   uint64
	LastThresholdUpdateSlot uint64
}

// DecodeHeader reads and validates the slab header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, &codec.LengthError{Schema: "slab header", Need: HeaderLen, Got: len(data)}
	}
	if magic := codec.U64(data, hdrMagic); magic != SlabMagic {
		return Header{}, &codec.FormatError{
			Reason: fmt.Sprintf("bad slab magic: got %#016x, want %#016x", magic, SlabMagic),
		}
	}

	flags := codec.U8(data, hdrFlags)
	return Header{
		Version:                 codec.U32(data, hdrVersion),
		Bump:                    codec.U8(data, hdrBump),
		Resolved:                flags&flagResolved != 0,
		Paused:                  flags&flagPaused != 0,
		Admin:                   codec.Pubkey(data, hdrAdmin),
		PendingAdmin:            codec.Pubkey(data, hdrPendingAdmin),
		Nonce:                   codec.U64(data, hdrNonce),
		LastThresholdUpdateSlot: codec.U64(data, hdrLastThreshold),
	}, nil
}

// Config field offsets, absolute within the slab. 128-bit fields sit on
// 8-byte boundaries.
const (
	cfgCollateralMint  = 104
	cfgVault           = 136
	cfgPriceFeed       = 168
	cfgMaxStaleness    = 200
	cfgConfFilter      = 208
	cfgInvertPrice     = 216
	cfgUnitScale       = 224
	cfgFundingHalflife = 232
	cfgFundingK        = 240
	cfgMaxFundingRate  = 248
	cfgLiqThreshStart  = 256
	cfgLiqThreshEnd    = 264
	cfgRampSlots       = 272
	cfgOverrideAuth    = 280
	cfgOverridePrice   = 312
	cfgOverrideTs      = 320
	cfgMaxPriceDelta   = 328
	cfgBreakerState    = 336
	cfgLastCapPrice    = 344
)

// MarketConfig is the 496-byte admin-controlled market configuration.
type MarketConfig struct {
	CollateralMint solana.PublicKey
	Vault          solana.PublicKey
	PriceFeed      solana.PublicKey

	MaxStalenessSlots uint64
	ConfFilterBps     uint64
	InvertPrice       bool
	UnitScale         uint64

	FundingHalflifeSlots uint64
	FundingKBps          uint64
	MaxFundingRateBps    uint64

	LiqThresholdStartBps uint64
	LiqThresholdEndBps   uint64
	ThresholdRampSlots   uint64

	OracleOverrideAuthority solana.PublicKey
	OverridePrice           int64
	OverrideTimestamp       int64

	MaxPriceDeltaBps uint64
	BreakerState     uint8
	LastCapPrice     *big.Int
}

// DecodeConfig reads the market config region.
func DecodeConfig(data []byte) (MarketConfig, error) {
	if len(data) < HeaderLen+ConfigLen {
		return MarketConfig{}, &codec.LengthError{Schema: "slab config", Need: HeaderLen + ConfigLen, Got: len(data)}
	}

	return MarketConfig{
		CollateralMint: codec.Pubkey(data, cfgCollateralMint),
		Vault:          codec.Pubkey(data, cfgVault),
		PriceFeed:      codec.Pubkey(data, cfgPriceFeed),

		MaxStalenessSlots: codec.U64(data, cfgMaxStaleness),
		ConfFilterBps:     codec.U64(data, cfgConfFilter),
		InvertPrice:       codec.U8(data, cfgInvertPrice) != 0,
		UnitScale:         codec.U64(data, cfgUnitScale),

		FundingHalflifeSlots: codec.U64(data, cfgFundingHalflife),
		FundingKBps:          codec.U64(data, cfgFundingK),
		MaxFundingRateBps:    codec.U64(data, cfgMaxFundingRate),

		LiqThresholdStartBps: codec.U64(data, cfgLiqThreshStart),
		LiqThresholdEndBps:   codec.U64(data, cfgLiqThreshEnd),
		ThresholdRampSlots:   codec.U64(data, cfgRampSlots),

		OracleOverrideAuthority: codec.Pubkey(data, cfgOverrideAuth),
		OverridePrice:           codec.I64(data, cfgOverridePrice),
		OverrideTimestamp:       codec.I64(data, cfgOverrideTs),

		MaxPriceDeltaBps: codec.U64(data, cfgMaxPriceDelta),
		BreakerState:     codec.U8(data, cfgBreakerState),
		LastCapPrice:     codec.U128(data, cfgLastCapPrice),
	}, nil
}

// Engine fixed-region field offsets, absolute within the slab.
const (
	engVaultBalance        = 600
	engInsuranceBalance    = 608
	engInsuranceFeeRevenue = 616
	engCurrentSlot         = 624
	engFundingIndex        = 632
	engLastFundingSlot     = 648
	engFundingRatePerSlot  = 656
	engLastCrankSlot       = 664
	engCrankCount          = 672
	engTotalOpenInterest   = 680
	engTotalCapital        = 696
	engTotalPositivePnl    = 712
	engLiqCursor           = 728
	engFundingCursor       = 736
	engSweepCursor         = 744
	engLastSweepSlot       = 752
	engLifetimeOpened      = 760
	engLifetimeClosed      = 768
	engLpNetExposure       = 776
	engLpSumAbsExposure    = 792
	engLpMaxExposure       = 808
	engLpMaxExposureEpoch  = 824
)

// Risk parameter offsets, fixed within the engine region.
const (
	prmInitialMargin      = 840
	prmMaintenanceMargin  = 848
	prmTradeFee           = 856
	prmFeeTierThreshold   = 864
	prmFeeTierDiscount    = 872
	prmLiquidationFee     = 880
	prmLiquidationPenalty = 888
	prmPartialLiqNum      = 896
	prmPartialLiqDen      = 904
)

// EngineState carries the engine aggregates plus the three slot-table
// counters that live just past the bitmap. The counters make the decode
// layout-dependent even though the fixed fields are not.
type EngineState struct {
	VaultBalance        uint64
	InsuranceBalance    uint64
	InsuranceFeeRevenue uint64
	CurrentSlot         uint64

	FundingIndex       *big.Int
	LastFundingSlot    uint64
	FundingRatePerSlot int64

	LastCrankSlot uint64
	CrankCount    uint64

	TotalOpenInterest *big.Int
	TotalCapital      *big.Int
	TotalPositivePnl  *big.Int

	LiqCursor     uint64
	FundingCursor uint64
	SweepCursor   uint64
	LastSweepSlot uint64

	LifetimeAccountsOpened uint64
	LifetimeAccountsClosed uint64

	LpNetExposure      *big.Int
	LpSumAbsExposure   *big.Int
	LpMaxExposure      *big.Int
	LpMaxExposureEpoch *big.Int

	SlotCount    uint16
	NextIdentity uint64
	FreeListHead uint16
}

// DecodeEngine reads the engine aggregates. The layout must already be
// resolved because the counters after the bitmap move with BitmapWords.
func DecodeEngine(data []byte, l Layout) (EngineState, error) {
	if len(data) < l.TableOffset {
		return EngineState{}, &codec.LengthError{Schema: "slab engine", Need: l.TableOffset, Got: len(data)}
	}

	preamble := BitmapOffset + l.BitmapWords*8
	return EngineState{
		VaultBalance:        codec.U64(data, engVaultBalance),
		InsuranceBalance:    codec.U64(data, engInsuranceBalance),
		InsuranceFeeRevenue: codec.U64(data, engInsuranceFeeRevenue),
		CurrentSlot:         codec.U64(data, engCurrentSlot),

		FundingIndex:       codec.I128(data, engFundingIndex),
		LastFundingSlot:    codec.U64(data, engLastFundingSlot),
		FundingRatePerSlot: codec.I64(data, engFundingRatePerSlot),

		LastCrankSlot: codec.U64(data, engLastCrankSlot),
		CrankCount:    codec.U64(data, engCrankCount),

		TotalOpenInterest: codec.U128(data, engTotalOpenInterest),
		TotalCapital:      codec.U128(data, engTotalCapital),
		TotalPositivePnl:  codec.U128(data, engTotalPositivePnl),

		LiqCursor:     codec.U64(data, engLiqCursor),
		FundingCursor: codec.U64(data, engFundingCursor),
		SweepCursor:   codec.U64(data, engSweepCursor),
		LastSweepSlot: codec.U64(data, engLastSweepSlot),

		LifetimeAccountsOpened: codec.U64(data, engLifetimeOpened),
		LifetimeAccountsClosed: codec.U64(data, engLifetimeClosed),

		LpNetExposure:      codec.I128(data, engLpNetExposure),
		LpSumAbsExposure:   codec.U128(data, engLpSumAbsExposure),
		LpMaxExposure:      codec.U128(data, engLpMaxExposure),
		LpMaxExposureEpoch: codec.U128(data, engLpMaxExposureEpoch),

		SlotCount:    codec.U16(data, preamble),
		NextIdentity: codec.U64(data, preamble+8),
		FreeListHead: codec.U16(data, preamble+16),
	}, nil
}

// RiskParams are the margin, fee, and liquidation-policy scalars. They sit
// at fixed offsets in the engine region, so decoding them needs no layout.
type RiskParams struct {
	InitialMarginBps      uint64
	MaintenanceMarginBps  uint64
	TradeFeeBps           uint64
	FeeTierThreshold      uint64
	FeeTierDiscountBps    uint64
	LiquidationFeeBps     uint64
	LiquidationPenaltyBps uint64
	PartialLiqNum         uint64
	PartialLiqDen         uint64
}

// DecodeParams reads the risk parameters.
func DecodeParams(data []byte) (RiskParams, error) {
	if len(data) < BitmapOffset {
		return RiskParams{}, &codec.LengthError{Schema: "slab params", Need: BitmapOffset, Got: len(data)}
	}

	return RiskParams{
		InitialMarginBps:      codec.U64(data, prmInitialMargin),
		MaintenanceMarginBps:  codec.U64(data, prmMaintenanceMargin),
		TradeFeeBps:           codec.U64(data, prmTradeFee),
		FeeTierThreshold:      codec.U64(data, prmFeeTierThreshold),
		FeeTierDiscountBps:    codec.U64(data, prmFeeTierDiscount),
		LiquidationFeeBps:     codec.U64(data, prmLiquidationFee),
		LiquidationPenaltyBps: codec.U64(data, prmLiquidationPenalty),
		PartialLiqNum:         codec.U64(data, prmPartialLiqNum),
		PartialLiqDen:         codec.U64(data, prmPartialLiqDen),
	}, nil
}

// AccountKind discriminates user accounts from liquidity providers.
type AccountKind uint8

const (
	KindUser AccountKind = 0
	KindLP   AccountKind = 1
)

func (k AccountKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindLP:
		return "lp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Slot record field offsets, relative to the slot start.
const (
	slotKey             = 0
	slotOwner           = 32
	slotMatcherProgram  = 64
	slotMatcherContext  = 96
	slotCapital         = 128
	slotKind            = 136
	slotPnl             = 144
	slotWarmupStart     = 152
	slotWarmupSlope     = 160
	slotPositionSize    = 168
	slotEntryPrice      = 176
	slotFundingSnapshot = 184
	slotFeeCredit       = 200
	slotLastFeeSlot     = 208
)

// AccountRecord is one 248-byte position slot. A record exists only while
// its bitmap bit is set; the decoder reads on demand and never caches.
type AccountRecord struct {
	Key            solana.PublicKey
	Owner          solana.PublicKey
	MatcherProgram solana.PublicKey
	MatcherContext solana.PublicKey

	Capital uint64
	Kind    AccountKind
	Pnl     int64

	WarmupStartSlot    uint64
	WarmupSlopePerSlot uint64

	PositionSize         int64
	EntryPrice           uint64
	FundingIndexSnapshot *big.Int

	FeeCredit   uint64
	LastFeeSlot uint64
}

// DecodeAccount reads the slot at index from the position table.
func DecodeAccount(data []byte, l Layout, index int) (AccountRecord, error) {
	if index < 0 || index >= l.SlotCapacity {
		return AccountRecord{}, &codec.RangeError{Index: index, Capacity: l.SlotCapacity}
	}

	off := l.TableOffset + index*SlotSize
	if len(data) < off+SlotSize {
		return AccountRecord{}, &codec.LengthError{Schema: "slab account", Need: off + SlotSize, Got: len(data)}
	}

	return AccountRecord{
		Key:            codec.Pubkey(data, off+slotKey),
		Owner:          codec.Pubkey(data, off+slotOwner),
		MatcherProgram: codec.Pubkey(data, off+slotMatcherProgram),
		MatcherContext: codec.Pubkey(data, off+slotMatcherContext),

		Capital: codec.U64(data, off+slotCapital),
		Kind:    AccountKind(codec.U8(data, off+slotKind)),
		Pnl:     codec.I64(data, off+slotPnl),

		WarmupStartSlot:    codec.U64(data, off+slotWarmupStart),
		WarmupSlopePerSlot: codec.U64(data, off+slotWarmupSlope),

		PositionSize:         codec.I64(data, off+slotPositionSize),
		EntryPrice:           codec.U64(data, off+slotEntryPrice),
		FundingIndexSnapshot: codec.I128(data, off+slotFundingSnapshot),

		FeeCredit:   codec.U64(data, off+slotFeeCredit),
		LastFeeSlot: codec.U64(data, off+slotLastFeeSlot),
	}, nil
}
