package insights

import (
	"fmt"
	"strings"

	"tradestein/internal/analytics"
	"tradestein/internal/models"
)

const reportSystemPrompt = `You are "Tradestein AI", a trading journal analyst.
Return a concise JSON object with the following shape:
{
  "summary": "string",
  "metrics": {
    "windowSize": number,
    "wins": number,
    "losses": number,
    "winRate": number,
    "avgPnl": number,
    "totalPnl": number,
    "bestTicker": "string|null",
    "bestTickerPnl": number
  },
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommendations": ["..."],
  "nextActions": ["..."]
}
Keep it practical for a day trader.`

const chatSystemPrompt = "You are Tradestein AI, a professional trading mentor. " +
	"Give specific insights from journal data. Be concise, motivational, and data-driven."

const reportInstruction = "Analyze the last N trades and return the JSON object."

// chatDigestTrades caps the trade lines included in the chat context.
const chatDigestTrades = 30

// promptTrade is the compact trade shape sent to the model.
type promptTrade struct {
	Date        string   `json:"date"`
	Ticker      string   `json:"ticker"`
	EntryTime   string   `json:"entry_time"`
	ExitTime    string   `json:"exit_time"`
	PnL         float64  `json:"pnl"`
	FinalRR     *float64 `json:"final_rr"`
	Confluences string   `json:"confluences,omitempty"`
	DoneRight   string   `json:"done_right,omitempty"`
	DoneWrong   string   `json:"done_wrong,omitempty"`
	WhatToDo    string   `json:"what_to_do,omitempty"`
}

type reportPayload struct {
	Instruction      string        `json:"instruction"`
	Ask              *string       `json:"ask"`
	SampleTradeShape promptTrade   `json:"sampleTradeShape"`
	Trades           []promptTrade `json:"trades"`
}

var sampleRR = 1.8

var sampleTrade = promptTrade{
	Date:        "YYYY-MM-DD",
	Ticker:      "AAPL",
	EntryTime:   "HH:MM",
	ExitTime:    "HH:MM",
	PnL:         120.5,
	FinalRR:     &sampleRR,
	Confluences: "text",
	DoneRight:   "text",
	DoneWrong:   "text",
	WhatToDo:    "text",
}

func toPromptTrade(t models.Trade) promptTrade {
	pt := promptTrade{
		Date:        t.Date,
		Ticker:      t.Ticker,
		EntryTime:   t.EntryTime,
		ExitTime:    t.ExitTime,
		PnL:         analytics.ToFiniteNumber(t.PnL, 0),
		Confluences: t.Confluences,
		DoneRight:   t.DoneRight,
		DoneWrong:   t.DoneWrong,
		WhatToDo:    t.WhatToImprove,
	}
	if rr, ok := analytics.EffectiveRR(t); ok {
		pt.FinalRR = &rr
	}
	return pt
}

func newReportPayload(trades []models.Trade, ask string) reportPayload {
	p := reportPayload{
		Instruction:      reportInstruction,
		SampleTradeShape: sampleTrade,
		Trades:           make([]promptTrade, 0, len(trades)),
	}
	if ask = strings.TrimSpace(ask); ask != "" {
		p.Ask = &ask
	}
	for _, t := range trades {
		p.Trades = append(p.Trades, toPromptTrade(t))
	}
	return p
}

// journalDigest renders the plain-text journal summary given to the chat
// model: headline stats, then the most recent trades newest first.
// trades must be sorted by date.
func journalDigest(trades []models.Trade) string {
	if len(trades) == 0 {
		return "No trades available."
	}

	s := analytics.Summarize(trades)
	var b strings.Builder
	fmt.Fprintf(&b, "Summary:\n- Trades: %d\n- Win rate: %.1f%%\n- Total PnL: %.2f$\n- Avg R:R: %.2f\n\n",
		s.TradeCount, s.WinRate, s.TotalPnL, s.AvgRR)
	fmt.Fprintf(&b, "Recent trades (max %d):", chatDigestTrades)

	start := len(trades) - chatDigestTrades
	if start < 0 {
		start = 0
	}
	for i := len(trades) - 1; i >= start; i-- {
		t := trades[i]
		rr := "-"
		if v, ok := analytics.EffectiveRR(t); ok {
			rr = fmt.Sprintf("%.2f", v)
		}
		fmt.Fprintf(&b, "\n* %s %s | %.2f$ | R:R %s | %s->%s", t.Date, t.Ticker, t.PnL, rr, t.EntryTime, t.ExitTime)
		if note := firstNonEmpty(t.Confluences, t.WhatToImprove); note != "" {
			fmt.Fprintf(&b, " | Note: %s", truncateRunes(note, 60))
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
