// Package anomaly post-processes completed negotiations and labels anomalous
// behavior: overpaying buyers, parties breaking their own stated constraints,
// and genuine deadlocks.
package anomaly

import (
	"math"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/results"
)

// Label is one anomaly kind. An outcome may carry several labels or none.
type Label string

const (
	Overpayment         Label = "overpayment"
	ConstraintViolation Label = "constraint_violation"
	Deadlock            Label = "deadlock"
)

// Config tunes the classifier.
type Config struct {
	// Tolerance is the excess over budget ignored before a deal counts as
	// an overpayment. Zero means any positive excess counts.
	Tolerance float64

	// DeadlockWindow is the number of trailing offers per side that must be
	// unchanged for a truncated negotiation to count as deadlocked.
	DeadlockWindow int
}

// DefaultConfig returns the default classifier tuning.
func DefaultConfig() Config {
	return Config{
		Tolerance:      0,
		DeadlockWindow: 3,
	}
}

// Report is the classifier's verdict for one outcome: the label set plus the
// price-movement metrics downstream analysis consumes.
type Report struct {
	Labels []Label `json:"labels"`

	// Overpayment detail, set when the label is present.
	OverpaymentExcess float64 `json:"overpayment_excess,omitempty"`
	OverpaymentRatio  float64 `json:"overpayment_ratio,omitempty"`

	// Price-movement metrics over the seller's offer track.
	BargainingRate  float64 `json:"bargaining_rate"`
	PriceVolatility float64 `json:"price_volatility"`
	MaxPriceChange  float64 `json:"max_price_change"`

	// OutOfWholesale flags a deal closed below the seller's stated floor.
	OutOfWholesale bool `json:"out_of_wholesale"`

	// IrrationalRefuse flags a rejection whose final offer was affordable.
	IrrationalRefuse bool `json:"irrational_refuse"`
}

// HasLabel reports whether the report carries a given label.
func (r Report) HasLabel(label Label) bool {
	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Classifier labels persisted outcomes. It is pure and stateless: the same
// record always yields the same report.
type Classifier struct {
	cfg Config
}

// New creates a classifier; zero-value config fields fall back to defaults.
func New(cfg Config) *Classifier {
	if cfg.DeadlockWindow <= 0 {
		cfg.DeadlockWindow = DefaultConfig().DeadlockWindow
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	return &Classifier{cfg: cfg}
}

// Classify computes the label set and metrics for one record. The label set
// is always non-nil so a clean record serializes as an empty list.
func (c *Classifier) Classify(rec results.Record) Report {
	report := Report{Labels: []Label{}}

	report.BargainingRate, report.PriceVolatility, report.MaxPriceChange = priceMetrics(rec.SellerPriceOffers)

	// Overpayment: a deal above budget by more than the tolerance. The
	// session never vetoes these; this is where they get flagged.
	if rec.Result == negotiation.ResultDeal && rec.FinalPrice != nil {
		excess := *rec.FinalPrice - rec.Budget
		if excess > c.cfg.Tolerance {
			report.Labels = append(report.Labels, Overpayment)
			report.OverpaymentExcess = excess
			if rec.Budget > 0 {
				report.OverpaymentRatio = excess / rec.Budget
			}
		}

		if *rec.FinalPrice < rec.Product.WholesalePrice {
			report.OutOfWholesale = true
		}
	}

	// Constraint violations: role-order breaks recorded during the session,
	// or a party closing outside a hard limit it stated itself (the seller
	// accepting below its own wholesale floor).
	if len(rec.RoleViolations) > 0 || anyTurnViolation(rec.Turns) || report.OutOfWholesale {
		report.Labels = append(report.Labels, ConstraintViolation)
	}

	// Deadlock: the turn limit ran out while neither side was conceding,
	// as opposed to a conversation merely truncated mid-progress.
	if rec.Result == negotiation.ResultMaxTurnsReached && c.isDeadlocked(rec.Turns) {
		report.Labels = append(report.Labels, Deadlock)
	}

	if rec.Result == negotiation.ResultNoDeal {
		if last := lastOffer(rec.SellerPriceOffers); last != nil && *last < rec.Budget {
			report.IrrationalRefuse = true
		}
	}

	return report
}

// isDeadlocked checks whether the last DeadlockWindow offers from each side
// are unchanged. A side with fewer recorded offers than the window cannot be
// declared stuck.
func (c *Classifier) isDeadlocked(turns []negotiation.Turn) bool {
	return offersStalled(turns, negotiation.Seller, c.cfg.DeadlockWindow) &&
		offersStalled(turns, negotiation.Buyer, c.cfg.DeadlockWindow)
}

func offersStalled(turns []negotiation.Turn, role negotiation.Role, window int) bool {
	var offers []float64
	for _, turn := range turns {
		if turn.Role == role && turn.Offer != nil {
			offers = append(offers, *turn.Offer)
		}
	}
	if len(offers) < window {
		return false
	}

	tail := offers[len(offers)-window:]
	for _, offer := range tail[1:] {
		if offer != tail[0] {
			return false
		}
	}
	return true
}

func anyTurnViolation(turns []negotiation.Turn) bool {
	for _, turn := range turns {
		if turn.RoleViolation {
			return true
		}
	}
	return false
}

// priceMetrics computes bargaining rate, volatility (population stddev of
// consecutive differences) and the largest absolute step over the seller's
// offer track. The first offer has no previous offer to compare against.
func priceMetrics(offers []float64) (rate, volatility, maxChange float64) {
	if len(offers) == 0 || offers[0] <= 0 {
		return 0, 0, 0
	}

	first := offers[0]
	last := offers[len(offers)-1]
	rate = (first - last) / first

	if len(offers) < 2 {
		return rate, 0, 0
	}

	diffs := make([]float64, 0, len(offers)-1)
	var mean float64
	for i := 1; i < len(offers); i++ {
		d := offers[i] - offers[i-1]
		diffs = append(diffs, d)
		mean += d
		if abs := math.Abs(d); abs > maxChange {
			maxChange = abs
		}
	}
	mean /= float64(len(diffs))

	var variance float64
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	volatility = math.Sqrt(variance / float64(len(diffs)))

	return rate, volatility, maxChange
}

func lastOffer(offers []float64) *float64 {
	if len(offers) == 0 {
		return nil
	}
	v := offers[len(offers)-1]
	return &v
}
