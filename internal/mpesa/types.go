package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultCode tolerates the gateway's inconsistent encoding: callbacks carry
// the code as a JSON number, query responses as a string. "0" means success.
type ResultCode string

func (r *ResultCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ResultCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = ResultCode(n.String())
	return nil
}

func (r ResultCode) Success() bool { return r == "0" }

// STKPushRequest initiates a payment prompt on the customer's phone.
// PhoneNumber must already be normalized (see NormalizePhone); Amount is
// whole shillings.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           int
	AccountReference string
	Description      string
}

// STKPushResponse is the gateway's acknowledgment of an accepted initiation.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse reports the state of a previously initiated push.
type STKQueryResponse struct {
	ResponseCode ResultCode `json:"ResponseCode"`
	ResultCode   ResultCode `json:"ResultCode"`
	ResultDesc   string     `json:"ResultDesc"`
}

// CallbackEnvelope is the payload the gateway posts to the callback URL.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string     `json:"MerchantRequestID"`
	CheckoutRequestID string     `json:"CheckoutRequestID"`
	ResultCode        ResultCode `json:"ResultCode"`
	ResultDesc        string     `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// ReceiptNumber extracts the M-Pesa receipt id from the success metadata.
// Empty on failure callbacks, which carry no metadata.
func (cb STKCallback) ReceiptNumber() string {
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", item.Value)
		}
	}
	return ""
}

// RejectionError is an explicit decline from the gateway, as opposed to a
// transport failure. Initiations that fail this way are terminal.
type RejectionError struct {
	Code        string
	Description string
}

func (e *RejectionError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway rejected request: %s (code %s)", e.Description, e.Code)
	}
	return fmt.Sprintf("gateway rejected request (code %s)", e.Code)
}
