package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/credit"
)

func (cli *commandLine) grantCredits(studentID, batchID string, credits int, amount, expires string) error {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(studentID, "student"),
		vala.StringNotEmpty(batchID, "batch"),
		vala.GreaterThan(credits, 0, "credits"),
	).Check()
	if err != nil {
		return err
	}

	paid, err := decimal.NewFromString(amount)
	if err != nil {
		return errors.Wrapf(err, "parsing amount %q", amount)
	}
	ng := credit.NewGrant{
		StudentID:    studentID,
		BatchID:      batchID,
		Credits:      credits,
		AmountPaid:   paid,
		PurchaseDate: core.NowFunc(),
	}
	if expires != "" {
		exp, err := time.Parse("2006-01-02", expires)
		if err != nil {
			return errors.Wrapf(err, "parsing expiry date %q", expires)
		}
		ng.ExpiryDate = &exp
	}

	e, err := cli.creditSvc.Grant(context.Background(), ng)
	if err != nil {
		return err
	}
	fmt.Printf("granted %d credits to student %s for batch %s (entry %s)\n", e.Credits, e.StudentID, e.BatchID, e.ID)
	return nil
}
