package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Callback is the part of an STK callback the service acts on.
type Callback struct {
	MerchantRequestID  string
	CheckoutRequestID  string
	ResultCode         int
	ResultDesc         string
	Amount             decimal.Decimal
	PhoneNumber        string
	AccountReference   string
	MpesaReceiptNumber string
}

// Success reports whether the customer paid
func (c *Callback) Success() bool { return c.ResultCode == 0 }

type callbackEnvelope struct {
	Body *struct {
		STKCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string       `json:"MerchantRequestID"`
	CheckoutRequestID string       `json:"CheckoutRequestID"`
	ResultCode        *json.Number `json:"ResultCode"`
	ResultDesc        string       `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ParseCallback decodes a Body.stkCallback payload. Numbers are kept as
// json.Number so large phone numbers and amounts are not rounded through float64.
func ParseCallback(raw []byte) (*Callback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, &CallbackError{Reason: "invalid JSON", Cause: err}
	}
	if env.Body == nil || env.Body.STKCallback == nil {
		return nil, &CallbackError{Reason: "missing Body.stkCallback"}
	}
	stk := env.Body.STKCallback
	if stk.ResultCode == nil {
		return nil, &CallbackError{Reason: "missing ResultCode"}
	}
	code, err := stk.ResultCode.Int64()
	if err != nil {
		return nil, &CallbackError{Reason: "invalid ResultCode", Cause: err}
	}

	cb := &Callback{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        int(code),
		ResultDesc:        stk.ResultDesc,
		Amount:            decimal.Zero,
	}
	if stk.CallbackMetadata == nil {
		return cb, nil
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(metadataString(item.Value))
			if err != nil {
				return nil, &CallbackError{Reason: "invalid Amount", Cause: err}
			}
			if amount.IsNegative() {
				return nil, &CallbackError{Reason: "invalid Amount", Cause: fmt.Errorf("negative amount %s", amount)}
			}
			cb.Amount = amount
		case "PhoneNumber":
			cb.PhoneNumber = metadataString(item.Value)
		case "AccountReference":
			cb.AccountReference = metadataString(item.Value)
		case "MpesaReceiptNumber":
			cb.MpesaReceiptNumber = metadataString(item.Value)
		}
	}
	return cb, nil
}

func metadataString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case json.Number:
		return t.String()
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}

// IsCallbackError reports whether err came from ParseCallback
func IsCallbackError(err error) bool {
	var ce *CallbackError
	return errors.As(err, &ce)
}
