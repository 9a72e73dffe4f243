package comdirect

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// transactionsPageSize is the fixed page size for transaction retrieval. The
// API caps a page at 500 entries and this client always requests a full one.
const transactionsPageSize = "500"

// TransactionDirection filters transactions by money flow.
type TransactionDirection string

const (
	DirectionCredit         TransactionDirection = "CREDIT"
	DirectionDebit          TransactionDirection = "DEBIT"
	DirectionCreditAndDebit TransactionDirection = "CREDIT_AND_DEBIT"
)

// TransactionState filters transactions by booking state.
type TransactionState string

const (
	TransactionBooked  TransactionState = "BOOKED"
	TransactionPending TransactionState = "PENDING"
	TransactionBoth    TransactionState = "BOTH"
)

// QueryOption adjusts the query parameters of a business call.
type QueryOption func(r *resty.Request)

// WithoutAccountAttributes omits the nested account master data from the
// response.
func WithoutAccountAttributes() QueryOption {
	return func(r *resty.Request) {
		r.SetQueryParam("without-attr", "account")
	}
}

// WithoutAttributes omits the named attributes from the response.
func WithoutAttributes(attrs ...string) QueryOption {
	return func(r *resty.Request) {
		r.SetQueryParam("without-attr", strings.Join(attrs, ","))
	}
}

// WithTransactionDirection filters transactions by direction.
func WithTransactionDirection(direction TransactionDirection) QueryOption {
	return func(r *resty.Request) {
		r.SetQueryParam("transactionDirection", string(direction))
	}
}

// WithTransactionState filters transactions by booking state.
func WithTransactionState(state TransactionState) QueryOption {
	return func(r *resty.Request) {
		r.SetQueryParam("transactionState", string(state))
	}
}

// GetAccountBalances returns the balances of all accounts of the user.
func (c *Client) GetAccountBalances(ctx context.Context, opts ...QueryOption) ([]AccountBalance, error) {
	var res struct {
		Values []AccountBalance `json:"values"`
	}

	if err := c.do(ctx, "get account balances", opBusiness, func(r *resty.Request) (*resty.Response, error) {
		for _, opt := range opts {
			opt(r)
		}

		return r.SetResult(&res).Get("/api/banking/clients/user/v2/accounts/balances")
	}); err != nil {
		return nil, err
	}

	return res.Values, nil
}

// GetTransactions returns one page of transactions for the given account,
// newest first. The page size is fixed; filters are passed as options.
func (c *Client) GetTransactions(ctx context.Context, accountID string, opts ...QueryOption) ([]Transaction, error) {
	var res struct {
		Values []Transaction `json:"values"`
	}

	if err := c.do(ctx, "get transactions", opAccountScoped, func(r *resty.Request) (*resty.Response, error) {
		r.SetQueryParam("paging-count", transactionsPageSize)

		for _, opt := range opts {
			opt(r)
		}

		return r.SetResult(&res).Get("/api/banking/v1/accounts/" + url.PathEscape(accountID) + "/transactions")
	}); err != nil {
		return nil, err
	}

	return res.Values, nil
}
