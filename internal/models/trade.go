package models

import "time"

// Trade represents one journaled round-trip and its reflection notes.
type Trade struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	Ticker        string    `json:"ticker"`
	EntryTime     string    `json:"entry_time,omitempty"`
	ExitTime      string    `json:"exit_time,omitempty"`
	PnL           float64   `json:"pnl"`
	FinalRR       *float64  `json:"final_rr"`
	AmountRisked  *float64  `json:"amount_risked,omitempty"`
	Confluences   string    `json:"confluences,omitempty"`
	DoneRight     string    `json:"done_right,omitempty"`
	DoneWrong     string    `json:"done_wrong,omitempty"`
	WhatToImprove string    `json:"what_to_improve,omitempty"`
	Emotions      string    `json:"emotions,omitempty"`
	EntryChart    string    `json:"entry_chart,omitempty"`
	HTFChart      string    `json:"htf_chart,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectiveRR returns the realised reward-to-risk ratio. An explicit FinalRR
// wins; otherwise it is derived from PnL and AmountRisked when risk is positive.
func (t Trade) EffectiveRR() (float64, bool) {
	if t.FinalRR != nil {
		return *t.FinalRR, true
	}
	if t.AmountRisked != nil && *t.AmountRisked > 0 {
		return t.PnL / *t.AmountRisked, true
	}
	return 0, false
}

// TradeInput is the loosely typed form of a trade as it arrives from a client,
// a CSV row or a quick-add form. Numeric fields may be numbers, numeric
// strings, or missing.
type TradeInput struct {
	Date          string      `json:"date"`
	Ticker        string      `json:"ticker"`
	EntryTime     string      `json:"entry_time"`
	ExitTime      string      `json:"exit_time"`
	PnL           interface{} `json:"pnl"`
	FinalRR       interface{} `json:"final_rr"`
	AmountRisked  interface{} `json:"amount_risked"`
	Confluences   string      `json:"confluences"`
	DoneRight     string      `json:"done_right"`
	DoneWrong     string      `json:"done_wrong"`
	WhatToImprove string      `json:"what_to_improve"`
	WhatToDo      string      `json:"what_to_do"`
	Note          string      `json:"note"`
	Emotions      string      `json:"emotions"`
	EntryChart    string      `json:"entry_chart"`
	HTFChart      string      `json:"htf_chart"`
}
