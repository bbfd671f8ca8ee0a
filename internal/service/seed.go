package service

import (
	"context"
	"errors"

	"bank_system/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DemoUser is a login created by SeedDemo
type DemoUser struct {
	Email    string
	Password string
	FullName string
	Balance  decimal.Decimal
}

// DemoUsers are the accounts a fresh demo server starts with
var DemoUsers = []DemoUser{
	{Email: "john@email.com", Password: "password123", FullName: "John", Balance: decimal.NewFromInt(1000)},
	{Email: "ben@email.com", Password: "secret456", FullName: "Ben", Balance: decimal.NewFromInt(1000)},
}

// SeedDemo registers the demo users and funds their accounts. Users that
// already exist are left alone, so seeding twice is harmless.
func SeedDemo(ctx context.Context, identity *Identity, ledger *Ledger) error {
	for _, demo := range DemoUsers {
		reg, err := identity.Register(ctx, demo.Email, demo.Password, demo.FullName)
		if errors.Is(err, domain.ErrEmailTaken) {
			logrus.WithField("email", demo.Email).Debug("Demo user already present")
			continue // Seeded on an earlier start
		}
		if err != nil {
			return err
		}
		if demo.Balance.IsPositive() {
			// Funded through the ledger so the deposit shows up in the history
			if _, err := ledger.Deposit(ctx, reg.AccountID, demo.Balance, "Initial deposit"); err != nil {
				return err
			}
		}
		logrus.WithField("email", demo.Email).Info("Demo user seeded")
	}
	return nil
}
