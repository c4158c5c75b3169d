// Package advisor asks a language model for demo households and savings
// advice, degrading to local data and text whenever the model can't help.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/energiwatch/energiwatch/pkg/common"
	"github.com/energiwatch/energiwatch/pkg/generator"
	"github.com/energiwatch/energiwatch/pkg/llm"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/types"
	"github.com/levenlabs/go-lflag"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 45 * time.Second
	DefaultMinInterval = time.Second
)

// Gateway is the single entry point for model calls.
type Gateway struct {
	transport Transport
	generator *generator.Generator
	limiter   *rate.Limiter
	timeout   time.Duration
	model     string
}

// Options tune a Gateway. Zero values use the defaults.
type Options struct {
	Model   string
	Timeout time.Duration
	// Limiter gates outgoing calls. nil allows one call per
	// DefaultMinInterval with a burst of 2.
	Limiter *rate.Limiter
}

// New returns a Gateway calling t and falling back to gen.
func New(t Transport, gen *generator.Generator, opts Options) *Gateway {
	g := &Gateway{
		transport: t,
		generator: gen,
		limiter:   opts.Limiter,
		timeout:   opts.Timeout,
		model:     opts.Model,
	}
	if g.limiter == nil {
		g.limiter = rate.NewLimiter(rate.Every(DefaultMinInterval), 2)
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.model == "" {
		g.model = llm.DefaultModel
	}
	return g
}

// Configured registers the advisor flags. Without -advisor-proxy-url the
// gateway calls gemini in-process.
func Configured(gemini *llm.Gemini, gen *generator.Generator) *Gateway {
	proxyURL := lflag.String("advisor-proxy-url", "", "URL of a model proxy to call instead of calling Gemini directly")
	model := lflag.String("advisor-model", llm.DefaultModel, "Model requested first for advisor calls")
	timeout := lflag.Duration("advisor-timeout", DefaultTimeout, "Timeout for a single advisor call, including model fallbacks")
	minInterval := lflag.Duration("advisor-min-interval", DefaultMinInterval, "Minimum spacing between advisor calls")

	g := &Gateway{generator: gen}
	lflag.Do(func() {
		var t Transport = NewGeminiTransport(gemini)
		if *proxyURL != "" {
			if _, err := url.Parse(*proxyURL); err != nil {
				panic(fmt.Sprintf("failed to parse advisor-proxy-url (%s): %v", *proxyURL, err))
			}
			t = NewProxyTransport(*proxyURL, common.HTTPClient(*timeout))
		}
		*g = *New(t, gen, Options{
			Model:   *model,
			Timeout: *timeout,
			Limiter: rate.NewLimiter(rate.Every(*minInterval), 2),
		})
	})
	return g
}

func (g *Gateway) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Message: err.Error(), Err: err}
	}
	return g.transport.CallModel(ctx, prompt, g.model)
}

// FetchSyntheticHouseholdData asks the model for a demo household. The
// result always has 30 day solar and usage series. IsAIGenerated is false
// when any part came from the local generator or had to be patched.
func (g *Gateway) FetchSyntheticHouseholdData(ctx context.Context) types.HouseholdData {
	text, err := g.call(ctx, householdPrompt)
	var h parsedHousehold
	if err == nil {
		h, err = parseHousehold(text)
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "model household unavailable, using local generator", slog.Any("error", err))
		return g.generator.Household()
	}
	if len(h.appliances) == 0 || h.solar == nil || allZero(h.solar) {
		log.Ctx(ctx).WarnContext(
			ctx,
			"model household invalid, using local generator",
			slog.Int("appliances", len(h.appliances)),
			slog.Int("solarDays", len(h.solar)),
		)
		return g.generator.Household()
	}

	out := types.HouseholdData{
		Appliances:    h.appliances,
		SolarData:     h.solar,
		UsageData:     h.usage,
		TariffData:    types.FlatTariff(types.FixedTariffRate),
		IsAIGenerated: !h.patched,
	}
	if h.patched {
		log.Ctx(ctx).DebugContext(ctx, "model household needed patching")
	}
	if len(out.SolarData) != types.DaysPerMonth {
		log.Ctx(ctx).DebugContext(ctx, "backfilling solar data", slog.Int("days", len(out.SolarData)))
		out.SolarData = g.generator.RandomSolarSeries()
		out.IsAIGenerated = false
	}
	if len(out.UsageData) != types.DaysPerMonth {
		log.Ctx(ctx).DebugContext(ctx, "backfilling usage data", slog.Int("days", len(out.UsageData)))
		out.UsageData = g.generator.RandomUsageSeries()
		out.IsAIGenerated = false
	}
	return out
}

// FetchAdvice asks the model for savings advice in Markdown. When the model
// can't be reached it returns a short local summary instead.
func (g *Gateway) FetchAdvice(ctx context.Context, in AdviceInput) string {
	prompt, err := buildAdvicePrompt(in)
	if err == nil {
		var text string
		text, err = g.call(ctx, prompt)
		if err == nil {
			return text
		}
	}
	log.Ctx(ctx).ErrorContext(ctx, "failed to generate advice", slog.Any("error", err))
	return fallbackAdvice(in.BillOverview.CurrentBill, in.Budget)
}

func allZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}
