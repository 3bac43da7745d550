package wallet

const (
	componentName = "wallet"

	operationGetOrCreate      = "get_or_create"
	operationAddFunds         = "add_funds"
	operationWithdrawFunds    = "withdraw_funds"
	operationProcessPayment   = "process_payment"
	operationUpdateAutoReload = "update_auto_reload"
	operationVerifyLedger     = "verify_ledger"
	operationRefundBooking    = "refund_booking"

	// DefaultCurrency is assigned to wallets created without an explicit currency.
	DefaultCurrency = "ZAR"

	// DefaultTransactionLimit applies when a history request omits a limit.
	DefaultTransactionLimit = 50
	// MaxTransactionLimit caps a single history page.
	MaxTransactionLimit = 200

	amountScale = 2

	descriptionDeposit    = "Wallet top-up"
	descriptionWithdrawal = "Wallet withdrawal"
	descriptionPayment    = "Booking payment"
	descriptionRefund     = "Booking refund"
)
