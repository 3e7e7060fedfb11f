package errors

type Code string

const (
	CodeInvalidMnemonic   Code = "INVALID_MNEMONIC"
	CodeMalformedMessage  Code = "MALFORMED_MESSAGE"
	CodeExpired           Code = "SIGNATURE_EXPIRED"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodeUnknownSender     Code = "UNKNOWN_SENDER"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodePriceDrift        Code = "PRICE_DRIFT"
	CodeQuoteUnavailable  Code = "QUOTE_UNAVAILABLE"
	CodeMessageMismatch   Code = "MESSAGE_MISMATCH"
	CodeReplayed          Code = "MESSAGE_REPLAYED"
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeNotFound          Code = "NOT_FOUND"
	CodeLedger            Code = "LEDGER_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// publicMessages is what a caller is allowed to see for each code.
var publicMessages = map[Code]string{
	CodeInvalidMnemonic:   "invalid mnemonic",
	CodeMalformedMessage:  "invalid message format",
	CodeExpired:           "signature expired",
	CodeInvalidSignature:  "invalid signature",
	CodeUnknownSender:     "unknown sender",
	CodeInsufficientFunds: "insufficient funds",
	CodePriceDrift:        "price changed too much",
	CodeQuoteUnavailable:  "price quote unavailable",
	CodeMessageMismatch:   "transfer does not match the signed message",
	CodeReplayed:          "message already redeemed",
	CodeInvalidRequest:    "invalid request",
	CodeNotFound:          "not found",
	CodeLedger:            "ledger unavailable",
	CodeInternal:          "internal error",
}

// Sentinels for errors.Is. They match any AppError carrying the same code.
var (
	ErrInvalidMnemonic   = &AppError{Code: CodeInvalidMnemonic}
	ErrMalformedMessage  = &AppError{Code: CodeMalformedMessage}
	ErrExpired           = &AppError{Code: CodeExpired}
	ErrInvalidSignature  = &AppError{Code: CodeInvalidSignature}
	ErrUnknownSender     = &AppError{Code: CodeUnknownSender}
	ErrInsufficientFunds = &AppError{Code: CodeInsufficientFunds}
	ErrPriceDrift        = &AppError{Code: CodePriceDrift}
	ErrQuoteUnavailable  = &AppError{Code: CodeQuoteUnavailable}
	ErrMessageMismatch   = &AppError{Code: CodeMessageMismatch}
	ErrReplayed          = &AppError{Code: CodeReplayed}
	ErrInvalidRequest    = &AppError{Code: CodeInvalidRequest}
	ErrNotFound          = &AppError{Code: CodeNotFound}
)
