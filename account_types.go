package comdirect

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AmountValue is a monetary amount with its currency unit. The API encodes
// the value as a decimal string; it is parsed losslessly.
type AmountValue struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// EnumText is a keyed enumeration with its display text.
type EnumText struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// AccountInformation identifies a counterparty (remitter, debtor, creditor).
type AccountInformation struct {
	HolderName string `json:"holderName"`
	IBAN       string `json:"iban,omitempty"`
	BIC        string `json:"bic,omitempty"`
}

// Account is the account master data record.
type Account struct {
	AccountID        string       `json:"accountId"`
	AccountDisplayID string       `json:"accountDisplayId"`
	Currency         string       `json:"currency"`
	ClientID         string       `json:"clientId"`
	AccountType      EnumText     `json:"accountType"`
	IBAN             string       `json:"iban,omitempty"`
	BIC              string       `json:"bic,omitempty"`
	CreditLimit      *AmountValue `json:"creditLimit,omitempty"`
}

// AccountBalance is the balance record of a single account.
type AccountBalance struct {
	AccountID              string      `json:"accountId"`
	Account                Account     `json:"account"`
	Balance                AmountValue `json:"balance"`
	BalanceEUR             AmountValue `json:"balanceEUR"`
	AvailableCashAmount    AmountValue `json:"availableCashAmount"`
	AvailableCashAmountEUR AmountValue `json:"availableCashAmountEUR"`
}

// Transaction is a single booking on an account. Dates are kept in the API's
// ISO form.
type Transaction struct {
	BookingStatus  string `json:"bookingStatus"`
	Reference      string `json:"reference"`
	ValutaDate     string `json:"valutaDate"`
	NewTransaction bool   `json:"newTransaction"`
	BookingDate    string `json:"bookingDate,omitempty"`

	Amount          *AmountValue `json:"amount,omitempty"`
	TransactionType *EnumText    `json:"transactionType,omitempty"`

	Remitter *AccountInformation `json:"remitter,omitempty"`
	Debtor   *AccountInformation `json:"debtor,omitempty"`
	Creditor *AccountInformation `json:"creditor,omitempty"`

	EndToEndReference     string `json:"endToEndReference,omitempty"`
	DirectDebitCreditorID string `json:"directDebitCreditorId,omitempty"`
	DirectDebitMandateID  string `json:"directDebitMandateId,omitempty"`

	// RemittanceInfo is the raw packed memo string as sent by the API.
	RemittanceInfo string `json:"remittanceInfo,omitempty"`

	// RemittanceLines is RemittanceInfo decoded into display lines.
	RemittanceLines []string `json:"-"`
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction

	aux := struct {
		*alias

		// The upstream Swagger spec misspells "debtor" as "deptor" and some
		// responses follow the spec. Accept the misspelled key, but let the
		// correctly spelled one win when both are present.
		Deptor *AccountInformation `json:"deptor"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if t.Debtor == nil {
		t.Debtor = aux.Deptor
	}

	t.RemittanceLines = ParseRemittanceInfo(t.RemittanceInfo)

	return nil
}
