package comdirect_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metabubble/go-comdirect"
)

func TestTransaction_UnmarshalDeptorFallback(t *testing.T) {
	// Responses following the upstream Swagger spec misspell "debtor".
	var tx comdirect.Transaction

	require.NoError(t, json.Unmarshal([]byte(`{
		"reference": "ref-1",
		"deptor": {"holderName": "Erika Mustermann"}
	}`), &tx))

	require.NotNil(t, tx.Debtor)
	require.Equal(t, "Erika Mustermann", tx.Debtor.HolderName)
}

func TestTransaction_UnmarshalDebtorWins(t *testing.T) {
	var tx comdirect.Transaction

	require.NoError(t, json.Unmarshal([]byte(`{
		"reference": "ref-1",
		"debtor": {"holderName": "Max Mustermann"},
		"deptor": {"holderName": "Erika Mustermann"}
	}`), &tx))

	require.NotNil(t, tx.Debtor)
	require.Equal(t, "Max Mustermann", tx.Debtor.HolderName)
}

func TestTransaction_UnmarshalDecodesRemittanceLines(t *testing.T) {
	var tx comdirect.Transaction

	require.NoError(t, json.Unmarshal([]byte(`{
		"reference": "ref-1",
		"remittanceInfo": "01Uebertrag auf Girokonto 02End-to-End-Ref.: 03nicht angegeben"
	}`), &tx))

	require.Equal(t, []string{
		"Uebertrag auf Girokonto",
		"End-to-End-Ref.:",
		"nicht angegeben",
	}, tx.RemittanceLines)
}

func TestAmountValue_UnmarshalDecimalString(t *testing.T) {
	var amount comdirect.AmountValue

	require.NoError(t, json.Unmarshal([]byte(`{"value": "1234.56", "unit": "EUR"}`), &amount))

	require.Equal(t, "1234.56", amount.Value.String())
	require.Equal(t, "EUR", amount.Unit)
}
