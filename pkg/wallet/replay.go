package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Replay folds transactions in creation order starting from a zero balance.
// Every row must continue the chain left by its predecessor.
func Replay(transactions []Transaction) (decimal.Decimal, error) {
	running := decimal.Zero
	for _, transaction := range transactions {
		if !transaction.BalanceBefore.Equal(running) {
			return running, fmt.Errorf("%w: transaction %d starts at %s, expected %s", ErrLedgerMismatch, transaction.ID, transaction.BalanceBefore.StringFixed(amountScale), running.StringFixed(amountScale))
		}
		next := transaction.Type.Apply(running, transaction.Amount)
		if !transaction.BalanceAfter.Equal(next) {
			return running, fmt.Errorf("%w: transaction %d ends at %s, expected %s", ErrLedgerMismatch, transaction.ID, transaction.BalanceAfter.StringFixed(amountScale), next.StringFixed(amountScale))
		}
		running = next
	}
	return running, nil
}

// VerifyLedger replays the full history of a wallet and compares it with the stored balance.
func (service *Service) VerifyLedger(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	var replayed decimal.Decimal
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetOrCreateWallet(ctx, userID, service.currency)
		if err != nil {
			return err
		}
		transactions, err := transactionStore.ListAllTransactions(ctx, account.ID)
		if err != nil {
			return err
		}
		replayed, err = Replay(transactions)
		if err != nil {
			return err
		}
		if !replayed.Equal(account.Balance) {
			return fmt.Errorf("%w: stored balance %s, replayed %s", ErrLedgerMismatch, account.Balance.StringFixed(amountScale), replayed.StringFixed(amountScale))
		}
		return nil
	})
	service.logOperation(ctx, operationVerifyLedger, userID, replayed, "", operationError)
	if operationError != nil {
		return decimal.Zero, operationError
	}
	return replayed, nil
}
