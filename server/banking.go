package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bradenaw/juniper/xslices"
	"github.com/gin-gonic/gin"

	"github.com/metabubble/go-comdirect"
	"github.com/metabubble/go-comdirect/server/backend"
)

func (s *Server) handleGetBalances() gin.HandlerFunc {
	return func(c *gin.Context) {
		balances := s.b.Balances(c.GetString("UserID"))

		if withoutAttr(c, "account") {
			balances = xslices.Map(balances, func(balance comdirect.AccountBalance) comdirect.AccountBalance {
				balance.Account = comdirect.Account{}
				return balance
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"values": balances,
			"paging": gin.H{"index": 0, "matches": len(balances)},
		})
	}
}

func (s *Server) handleGetTransactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := s.b.Transactions(c.GetString("UserID"), c.Param("accountID"))
		if err != nil {
			if errors.Is(err, backend.ErrUnknownAccount) {
				c.AbortWithStatus(http.StatusNotFound)
			} else {
				c.AbortWithStatus(http.StatusInternalServerError)
			}

			return
		}

		switch direction := c.Query("transactionDirection"); direction {
		case "", "CREDIT_AND_DEBIT":
			// No filter.

		case "CREDIT":
			txs = xslices.Filter(txs, func(tx comdirect.Transaction) bool {
				return tx.Amount != nil && tx.Amount.Value.Sign() > 0
			})

		case "DEBIT":
			txs = xslices.Filter(txs, func(tx comdirect.Transaction) bool {
				return tx.Amount != nil && tx.Amount.Value.Sign() < 0
			})

		default:
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}

		switch state := c.Query("transactionState"); state {
		case "", "BOTH":
			// No filter.

		case "BOOKED", "PENDING":
			txs = xslices.Filter(txs, func(tx comdirect.Transaction) bool {
				return tx.BookingStatus == state
			})

		default:
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}

		// Transactions are served newest first.
		xslices.Reverse(txs)

		matches := len(txs)

		if raw := c.Query("paging-count"); raw != "" {
			count, err := strconv.Atoi(raw)
			if err != nil || count < 0 {
				c.AbortWithStatus(http.StatusUnprocessableEntity)
				return
			}

			if count < len(txs) {
				txs = txs[:count]
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"values": txs,
			"paging": gin.H{"index": 0, "matches": matches},
		})
	}
}

func withoutAttr(c *gin.Context, attr string) bool {
	raw := c.Query("without-attr")
	if raw == "" {
		return false
	}

	return xslices.Index(strings.Split(raw, ","), attr) >= 0
}
