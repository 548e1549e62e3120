package mpesa

import "github.com/shopspring/decimal"

// TimestampLayout is the YYYYMMDDHHMMSS format the provider signs against.
const TimestampLayout = "20060102150405"

// TransactionType used for paybill STK pushes
const TransactionType = "CustomerPayBillOnline"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// STKPushParams are the per-purchase inputs to an STK push. Shortcode,
// passkey and callback URL come from Config.
type STKPushParams struct {
	Phone            string
	Amount           decimal.Decimal
	Token            string
	Title            string
	AccountReference string
}

// STKPushRequest is the wire payload for /mpesa/stkpush/v1/processrequest.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the provider's synchronous acknowledgement.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}
