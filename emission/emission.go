// Package emission implements the reward emission schedule.
//
// The schedule starts with an initial period (90 days by default) during
// which a fixed share of the cap (20%) is released linearly. After that the
// daily rate halves every halving period (365 days), counted from the end of
// the initial period:
//
//	initial period   rate = cap * 20 / 100 / 90 per day
//	halving epoch 0  rate = initial rate / 2
//	halving epoch 1  rate = initial rate / 4
//	...
//
// Amounts are computed from the cumulative emission F(t) since epochStart,
// which sums whole segments exactly and truncates only the partial segment
// the instant t falls into. Emitted(from, to) is F(to) - F(from), so splitting
// an interval at any point, halving boundaries included, never changes the
// total. An interval ending exactly on a boundary belongs to the earlier
// period.
package emission

import (
	"errors"
	"math/big"

	"github.com/rony4d/go-peerz/inter"
)

var (
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid emission params")

	dayBig = new(big.Int).SetUint64(uint64(inter.Day))
)

// Params fixes the shape of the emission curve.
type Params struct {
	// InitialPeriod is the linear launch window. Must be a whole number of days.
	InitialPeriod inter.Timestamp
	// HalvingPeriod is the length of each halving epoch. Must be a whole number of days.
	HalvingPeriod inter.Timestamp
	// InitialSharePct is the percentage of the cap released during InitialPeriod.
	InitialSharePct uint64
}

// DefaultParams returns the deployed curve: 90 days releasing 20% of the cap,
// then a halving every 365 days.
func DefaultParams() Params {
	return Params{
		InitialPeriod:   90 * inter.Day,
		HalvingPeriod:   inter.Year,
		InitialSharePct: 20,
	}
}

// Validate checks that the periods are whole, non-zero days and the share is
// within (0, 100].
func (p Params) Validate() error {
	if p.InitialPeriod == 0 || p.InitialPeriod%inter.Day != 0 {
		return ErrInvalidParams
	}
	if p.HalvingPeriod == 0 || p.HalvingPeriod%inter.Day != 0 {
		return ErrInvalidParams
	}
	if p.InitialSharePct == 0 || p.InitialSharePct > 100 {
		return ErrInvalidParams
	}
	return nil
}

// Schedule binds the curve to a cap and a start time.
type Schedule struct {
	Cap        *big.Int
	EpochStart inter.Timestamp
	Params     Params
}

// Segment is one constant-rate slice of an interval.
type Segment struct {
	Start     inter.Timestamp
	End       inter.Timestamp
	DailyRate *big.Int
	Amount    *big.Int
}

// NewSchedule returns a schedule using DefaultParams.
func NewSchedule(cap *big.Int, epochStart inter.Timestamp) Schedule {
	return Schedule{Cap: cap, EpochStart: epochStart, Params: DefaultParams()}
}

// Emitted returns the amount released in [from, to) by the default curve.
func Emitted(cap *big.Int, epochStart, from, to inter.Timestamp) *big.Int {
	return NewSchedule(cap, epochStart).Emitted(from, to)
}

// Segments splits [from, to) at every boundary of the default curve.
func Segments(cap *big.Int, epochStart, from, to inter.Timestamp) []Segment {
	return NewSchedule(cap, epochStart).Segments(from, to)
}

// InitialDailyReward returns cap * 20 / 100 / 90 for the default curve.
func InitialDailyReward(cap *big.Int) *big.Int {
	return NewSchedule(cap, 0).InitialDailyReward()
}

// InitialPeriodReward returns the amount released over the whole initial period.
func (s Schedule) InitialPeriodReward() *big.Int {
	days := new(big.Int).SetUint64(s.Params.InitialPeriod.Days())
	return days.Mul(days, s.InitialDailyReward())
}

// InitialDailyReward returns the daily rate of the initial period.
func (s Schedule) InitialDailyReward() *big.Int {
	if s.Cap == nil || s.Params.InitialPeriod < inter.Day {
		return new(big.Int)
	}
	r := new(big.Int).Mul(s.Cap, new(big.Int).SetUint64(s.Params.InitialSharePct))
	r.Quo(r, big.NewInt(100))
	return r.Quo(r, new(big.Int).SetUint64(s.Params.InitialPeriod.Days()))
}

// HalvingStart returns the instant the first halving epoch begins.
func (s Schedule) HalvingStart() inter.Timestamp {
	return s.EpochStart + s.Params.InitialPeriod
}

// RateAt returns the daily rate in force during the second starting at t.
func (s Schedule) RateAt(t inter.Timestamp) *big.Int {
	if t < s.EpochStart {
		return new(big.Int)
	}
	daily := s.InitialDailyReward()
	if t < s.HalvingStart() {
		return daily
	}
	epoch := uint64((t - s.HalvingStart()) / s.Params.HalvingPeriod)
	return halve(daily, epoch)
}

// Cumulative returns F(t), the total released in [EpochStart, t).
func (s Schedule) Cumulative(t inter.Timestamp) *big.Int {
	total := new(big.Int)
	if t <= s.EpochStart {
		return total
	}
	daily := s.InitialDailyReward()
	elapsed := t - s.EpochStart

	// initial period
	if elapsed <= s.Params.InitialPeriod {
		return partial(total, daily, elapsed)
	}
	total.Mul(daily, new(big.Int).SetUint64(s.Params.InitialPeriod.Days()))

	// whole halving epochs, then the partial one t falls into
	post := elapsed - s.Params.InitialPeriod
	whole := uint64(post / s.Params.HalvingPeriod)
	epochDays := new(big.Int).SetUint64(s.Params.HalvingPeriod.Days())
	piece := new(big.Int)
	for k := uint64(0); k < whole; k++ {
		rate := halve(daily, k)
		if rate.Sign() == 0 {
			return total
		}
		total.Add(total, piece.Mul(rate, epochDays))
	}
	rem := post - inter.Timestamp(whole)*s.Params.HalvingPeriod
	return partial(total, halve(daily, whole), rem)
}

// Emitted returns the amount released in [from, to). It is zero when
// to <= from or to <= EpochStart; from is clamped to EpochStart.
func (s Schedule) Emitted(from, to inter.Timestamp) *big.Int {
	if to <= from || to <= s.EpochStart {
		return new(big.Int)
	}
	if from < s.EpochStart {
		from = s.EpochStart
	}
	out := s.Cumulative(to)
	return out.Sub(out, s.Cumulative(from))
}

// Segments splits [from, to) at every boundary it crosses. Segment amounts
// sum exactly to Emitted(from, to).
func (s Schedule) Segments(from, to inter.Timestamp) []Segment {
	if to <= from || to <= s.EpochStart {
		return nil
	}
	if from < s.EpochStart {
		from = s.EpochStart
	}
	var out []Segment
	for cur := from; cur < to; {
		end := s.nextBoundary(cur)
		// the rate has decayed to zero, nothing left to split
		if s.RateAt(cur).Sign() == 0 {
			end = to
		}
		if end > to {
			end = to
		}
		amount := s.Cumulative(end)
		amount.Sub(amount, s.Cumulative(cur))
		out = append(out, Segment{
			Start:     cur,
			End:       end,
			DailyRate: s.RateAt(cur),
			Amount:    amount,
		})
		cur = end
	}
	return out
}

// nextBoundary returns the first rate change strictly after t (t >= EpochStart).
func (s Schedule) nextBoundary(t inter.Timestamp) inter.Timestamp {
	hs := s.HalvingStart()
	if t < hs {
		return hs
	}
	epoch := (t - hs) / s.Params.HalvingPeriod
	return hs + (epoch+1)*s.Params.HalvingPeriod
}

// halve returns daily >> (epoch+1).
func halve(daily *big.Int, epoch uint64) *big.Int {
	if epoch >= uint64(daily.BitLen()) {
		return new(big.Int)
	}
	return new(big.Int).Rsh(daily, uint(epoch+1))
}

// partial adds rate * seconds / Day to total, truncating.
func partial(total, rate *big.Int, seconds inter.Timestamp) *big.Int {
	p := new(big.Int).Mul(rate, new(big.Int).SetUint64(uint64(seconds)))
	p.Quo(p, dayBig)
	return total.Add(total, p)
}
