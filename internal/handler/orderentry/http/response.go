package http

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/service/orderentry"
	"github.com/krobus00/order-entry/internal/service/orderform"
	"github.com/krobus00/order-entry/internal/service/submission"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/shopspring/decimal"
)

type DraftResponse struct {
	Symbol            string      `json:"symbol"`
	Side              string      `json:"side"`
	OrderType         string      `json:"order_type"`
	Price             null.String `json:"price"`
	BaseSize          null.String `json:"base_size"`
	QuoteSize         null.String `json:"quote_size"`
	TriggerPrice      null.String `json:"trigger_price"`
	TriggerCondition  null.String `json:"trigger_condition"`
	PostOnly          bool        `json:"post_only"`
	ImmediateOrCancel bool        `json:"immediate_or_cancel"`
	ReduceOnly        bool        `json:"reduce_only"`
}

type InstrumentResponse struct {
	Symbol        string `json:"symbol"`
	Kind          string `json:"kind"`
	TickSize      string `json:"tick_size"`
	MinOrderSize  string `json:"min_order_size"`
	BaseDecimals  int32  `json:"base_decimals"`
	QuoteDecimals int32  `json:"quote_decimals"`
}

type DraftViewResponse struct {
	Draft          DraftResponse          `json:"draft"`
	Instrument     InstrumentResponse     `json:"instrument"`
	ProjectedPrice null.String            `json:"projected_price"`
	MarkPrice      null.String            `json:"mark_price"`
	BestBid        null.String            `json:"best_bid"`
	BestAsk        null.String            `json:"best_ask"`
	Availability   orderform.Availability `json:"availability"`
	Status         string                 `json:"status"`
}

type SubmitResponse struct {
	Status        string                `json:"status"`
	TxID          null.String           `json:"txid"`
	Protocol      null.String           `json:"protocol"`
	Draft         DraftResponse         `json:"draft"`
	Notifications []entity.Notification `json:"notifications"`
	Error         null.String           `json:"error"`
}

type SubmissionResponse struct {
	SubmissionID string      `json:"submission_id"`
	Symbol       string      `json:"symbol"`
	Protocol     string      `json:"protocol"`
	Side         string      `json:"side"`
	OrderType    string      `json:"order_type"`
	Price        string      `json:"price"`
	Size         string      `json:"size"`
	TriggerPrice null.String `json:"trigger_price"`
	Qualifier    string      `json:"qualifier"`
	Status       string      `json:"status"`
	TxID         null.String `json:"txid"`
	ErrorMessage null.String `json:"error_message"`
	SentAt       int64       `json:"sent_at"`
}

func mapDraft(d entity.OrderDraft) DraftResponse {
	resp := DraftResponse{
		Symbol:            d.Symbol,
		Side:              string(d.Side),
		OrderType:         string(d.OrderType),
		Price:             util.FormatOptionalDecimal(d.Price),
		BaseSize:          util.FormatOptionalDecimal(d.BaseSize),
		TriggerPrice:      util.FormatOptionalDecimal(d.TriggerPrice),
		TriggerCondition:  null.NewString(string(d.TriggerCondition), d.TriggerCondition != entity.TriggerConditionUnset),
		PostOnly:          d.PostOnly,
		ImmediateOrCancel: d.ImmediateOrCancel,
		ReduceOnly:        d.ReduceOnly,
	}

	// quote keeps its fixed scale so "200" shows as "200.000000"
	if d.QuoteSize.Valid {
		resp.QuoteSize = null.StringFrom(d.QuoteSize.Decimal.StringFixed(orderform.QuoteSizeDecimals))
	}

	return resp
}

func mapDraftView(view *orderentry.DraftView) DraftViewResponse {
	return DraftViewResponse{
		Draft: mapDraft(view.Draft),
		Instrument: InstrumentResponse{
			Symbol:        view.Instrument.Symbol,
			Kind:          string(view.Instrument.Kind),
			TickSize:      view.Instrument.TickSize.String(),
			MinOrderSize:  view.Instrument.MinOrderSize.String(),
			BaseDecimals:  view.Instrument.BaseDecimals,
			QuoteDecimals: view.Instrument.QuoteDecimals,
		},
		ProjectedPrice: util.FormatOptionalDecimal(view.ProjectedPrice),
		MarkPrice:      util.FormatOptionalDecimal(view.Prices.MarkPrice),
		BestBid:        levelPrice(view.Prices.BestBid),
		BestAsk:        levelPrice(view.Prices.BestAsk),
		Availability:   view.Availability,
		Status:         view.State.String(),
	}
}

func mapSubmitResult(res submission.Result, err error) SubmitResponse {
	resp := SubmitResponse{
		Status:        res.Status.String(),
		TxID:          null.NewString(res.TxID, res.TxID != ""),
		Protocol:      null.NewString(res.Protocol, res.Protocol != ""),
		Draft:         mapDraft(res.Draft),
		Notifications: res.Notifications,
	}
	if resp.Notifications == nil {
		resp.Notifications = []entity.Notification{}
	}
	if err != nil {
		resp.Error = null.StringFrom(err.Error())
	}

	return resp
}

func mapSubmission(s entity.OrderSubmission) SubmissionResponse {
	return SubmissionResponse{
		SubmissionID: s.SubmissionID,
		Symbol:       s.Symbol,
		Protocol:     string(s.Protocol),
		Side:         string(s.Side),
		OrderType:    string(s.OrderType),
		Price:        s.Price.String(),
		Size:         s.Size.String(),
		TriggerPrice: util.FormatOptionalDecimal(s.TriggerPrice),
		Qualifier:    string(s.Qualifier),
		Status:       string(s.Status),
		TxID:         null.NewString(s.TxID.String, s.TxID.Valid),
		ErrorMessage: null.NewString(s.ErrorMessage.String, s.ErrorMessage.Valid),
		SentAt:       s.SentAt.UnixMilli(),
	}
}

func levelPrice(level *entity.PriceLevel) null.String {
	if level == nil {
		return null.String{}
	}

	return util.FormatOptionalDecimal(decimal.NewNullDecimal(level.Price))
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
