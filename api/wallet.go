package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
	"github.com/linlinbupt123-crypto/mock_wallet/request"
	"github.com/linlinbupt123-crypto/mock_wallet/service"
)

var statusByCode = map[wrapErrors.Code]int{
	wrapErrors.CodeInvalidMnemonic:   http.StatusBadRequest,
	wrapErrors.CodeMalformedMessage:  http.StatusBadRequest,
	wrapErrors.CodeInvalidRequest:    http.StatusBadRequest,
	wrapErrors.CodeExpired:           http.StatusUnauthorized,
	wrapErrors.CodeInvalidSignature:  http.StatusUnauthorized,
	wrapErrors.CodeUnknownSender:     http.StatusNotFound,
	wrapErrors.CodeNotFound:          http.StatusNotFound,
	wrapErrors.CodeInsufficientFunds: http.StatusUnprocessableEntity,
	wrapErrors.CodeMessageMismatch:   http.StatusUnprocessableEntity,
	wrapErrors.CodePriceDrift:        http.StatusConflict,
	wrapErrors.CodeReplayed:          http.StatusConflict,
	wrapErrors.CodeQuoteUnavailable:  http.StatusServiceUnavailable,
	wrapErrors.CodeLedger:            http.StatusServiceUnavailable,
	wrapErrors.CodeInternal:          http.StatusInternalServerError,
}

// writeError answers with the public code and message only; wrapped causes stay in the logs.
func writeError(c *gin.Context, err error) {
	code, msg := wrapErrors.Public(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"code": code, "error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": wrapErrors.CodeInvalidRequest, "error": err.Error()})
}

type WalletHandler struct {
	walletService *service.WalletService
}

func NewWalletHandler(ws *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: ws}
}

// CreateWallet, generate mnemonic and seed a starting balance
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	mnemonic, account, err := h.walletService.CreateWallet(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request.WalletResp{
		Mnemonic: mnemonic,
		Address:  account.Address,
		Balance:  account.Balance,
	})
}

// ImportWallet, restore a wallet from its mnemonic
func (h *WalletHandler) ImportWallet(c *gin.Context) {
	var req request.ImportWalletReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := h.walletService.ImportWallet(c.Request.Context(), req.Mnemonic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request.WalletResp{Address: account.Address, Balance: account.Balance})
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	account, err := h.walletService.GetBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	records, err := h.walletService.History(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": records})
}

func (h *WalletHandler) SignMessage(c *gin.Context) {
	var req request.SignMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, sig, err := h.walletService.SignMessage(req.Mnemonic, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request.SignatureResp{Address: address, Signature: sig})
}

// QuoteTransfer, build the approval message to be signed
func (h *WalletHandler) QuoteTransfer(c *gin.Context) {
	var req request.QuoteTransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.walletService.PrepareTransfer(c.Request.Context(), req.Sender, req.Recipient, req.Amount, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *WalletHandler) SubmitTransfer(c *gin.Context) {
	var req request.TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.walletService.SubmitTransfer(c.Request.Context(), domain.TransferRequest{
		Sender:       req.Sender,
		Recipient:    req.Recipient,
		CryptoAmount: req.CryptoAmount,
		FiatAmount:   req.FiatAmount,
		Signature:    req.Signature,
		Message:      req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NewRouter wires every route onto a gin engine.
func NewRouter(h *WalletHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
	})

	wallets := r.Group("/wallets")
	wallets.POST("", h.CreateWallet)
	wallets.POST("/import", h.ImportWallet)
	wallets.GET("/:address/balance", h.GetBalance)
	wallets.GET("/:address/transactions", h.GetTransactions)

	r.POST("/messages/sign", h.SignMessage)

	r.POST("/transfers/quote", h.QuoteTransfer)
	r.POST("/transfers", h.SubmitTransfer)
	return r
}
