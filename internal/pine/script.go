package pine

import (
	_ "embed"
	"strings"

	"github.com/sawpanic/pinevolume/internal/exchange"
	"github.com/sawpanic/pinevolume/internal/pairs"
	"github.com/sawpanic/pinevolume/internal/rules"
)

const (
	// ScopeLimit is the number of local scopes TradingView allows per script
	ScopeLimit = 500
	// ScopeOverhead counts the scopes the fixed template itself opens
	ScopeOverhead = 2
)

//go:embed templates/prologue.pine
var prologue string

//go:embed templates/epilogue.pine
var epilogue string

// Template is the fixed text surrounding the generated exchange lines
type Template struct {
	Prologue string
	Epilogue string
}

// DefaultTemplate returns the embedded Pine v4 study skeleton
func DefaultTemplate() Template {
	return Template{Prologue: prologue, Epilogue: epilogue}
}

// Script is a fully assembled Pine Script
type Script struct {
	Text              string
	Branches          int
	ExceedsScopeLimit bool
}

// Scopes returns the estimated number of local scopes in the script
func (s Script) Scopes() int {
	return s.Branches + ScopeOverhead
}

// Assemble renders one ticker line and one volume line per exchange present in all, in
// canonical exchange order, followed by the line summing every exchange's volume.
func Assemble(all pairs.Tables, tpl Template, xbt AssetSet, rs *rules.Set) Script {
	var b strings.Builder
	b.WriteString(tpl.Prologue)

	order := all.Ordered()
	branches := 0
	if len(order) > 0 {
		volumes := make([]string, 0, len(order))
		for _, ex := range order {
			expr, n := TickerExpression(all[ex], xbt, rs)
			branches += n
			b.WriteString(tickerVar(ex) + " = " + expr + "\n\n")
			volumes = append(volumes, volumeVar(ex))
		}
		for _, ex := range order {
			b.WriteString(volumeLine(ex) + "\n")
		}
		b.WriteString("\nbaseVolume = " + strings.Join(volumes, " + ") + "\n")
	}

	b.WriteString(tpl.Epilogue)
	return Script{
		Text:              b.String(),
		Branches:          branches,
		ExceedsScopeLimit: branches+ScopeOverhead > ScopeLimit,
	}
}

func tickerVar(ex exchange.Exchange) string {
	return ex.String() + "Ticker"
}

func volumeVar(ex exchange.Exchange) string {
	return ex.String() + "Volume"
}

func volumeLine(ex exchange.Exchange) string {
	ticker := tickerVar(ex)
	return volumeVar(ex) + " = " + ticker + ` != "` + Sentinel + `" ? nz(security(` + ticker + ", timeframe.period, volume)) : 0"
}
