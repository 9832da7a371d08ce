// Package guidance turns a decision's structured reason codes into the
// human-facing headline and explanation shown next to each step. Guidance is
// derived from decisions and never feeds back into control.
package guidance

import (
	"context"
	"log/slog"

	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/types"
)

// DefaultConfidence is attached to every template-derived guidance. The
// templates are deterministic, so the value only signals that the prose is
// canned rather than situation-specific.
const DefaultConfidence = 0.75

// FromDecision derives the guidance for one step. Factors are display-only
// numeric context (SOC, current PV, near-term PV outlook).
func FromDecision(d types.Decision, factors map[string]float64) types.Guidance {
	g := types.Guidance{
		Risk:        d.Risk,
		Confidence:  DefaultConfidence,
		ReasonCodes: d.ReasonCodes,
		Factors:     factors,
	}

	switch {
	case d.HasReason(types.ReasonCriticalShortfall):
		g.Headline = "Critical load at risk: reduce usage"
		g.Explanation = "Essential loads could not be fully supplied this step. Switch off non-essential appliances until solar output or battery charge recovers."
	case d.HasReason(types.ReasonLowSOC) && d.HasReason(types.ReasonLowPVForecast):
		g.Headline = "Conserve: protect battery reserve"
		g.Explanation = "Battery reserve is low and solar is expected to stay limited. Delay heavy and non-essential tasks."
	case d.HasReason(types.ReasonPVSurplus):
		g.Headline = "Use solar now: run heavy tasks"
		g.Explanation = "Solar is strong right now. Run high-power tasks within this window to reduce battery discharge later."
	case len(d.DeferredTaskIDs) > 0:
		g.Headline = "Shift non-critical tasks"
		g.Explanation = "Some tasks are deferred to keep essential loads reliable. Try again when solar improves or SOC rises."
	default:
		g.Headline = "Normal operation"
		g.Explanation = "Energy conditions are acceptable. You can use flexible appliances within recommended windows."
	}
	return g
}

// Rewriter rewrites guidance prose for display. Implementations may only
// change Headline and Explanation; Apply restores every structured field
// afterwards so a misbehaving rewriter cannot alter the decision record.
type Rewriter interface {
	Rewrite(ctx context.Context, g types.Guidance, householdContext string) (types.Guidance, error)
}

// NoopRewriter returns guidance unchanged.
type NoopRewriter struct{}

// Rewrite implements Rewriter.
func (NoopRewriter) Rewrite(_ context.Context, g types.Guidance, _ string) (types.Guidance, error) {
	return g, nil
}

// Apply runs the rewriter over the guidance prose. A rewrite error keeps the
// template prose; runs never fail over display text.
func Apply(ctx context.Context, rw Rewriter, g types.Guidance, householdContext string) types.Guidance {
	if rw == nil {
		return g
	}
	out, err := rw.Rewrite(ctx, g, householdContext)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "guidance rewrite failed", slog.Any("error", err))
		return g
	}
	out.Risk = g.Risk
	out.Confidence = g.Confidence
	out.ReasonCodes = g.ReasonCodes
	out.Factors = g.Factors
	return out
}
