package dto

import "github.com/shopspring/decimal"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// SignInResponse carries a fresh anonymous identity
type SignInResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// SuggestPriceResponse is a suggested per-seat price
type SuggestPriceResponse struct {
	PricePerSeat decimal.Decimal `json:"price_per_seat"`
}

// RefineResponse is a refined note
type RefineResponse struct {
	Text string `json:"text"`
}

// ListResponse wraps a collection with its size
type ListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}
