package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/finsync/internal/cli"
	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/ledger"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage accounts",
	}

	cmd.PersistentFlags().Bool("offline", false, "Do not contact the remote store after the change")

	cmd.AddCommand(accountAddCmd())
	cmd.AddCommand(accountListCmd())
	return cmd
}

func accountAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Example: `  finsync account add --name "Nubank" --type checking --balance 1500
  finsync account add --name "Cartão" --type credit --credit-limit 5000 --closing-day 3 --due-day 10`,
		RunE: runAccountAdd,
	}

	cmd.Flags().String("name", "", "Account name (required)")
	cmd.Flags().String("type", string(model.AccountChecking), "checking, savings, investment or credit")
	cmd.Flags().String("bank", "", "Bank identifier")
	cmd.Flags().String("color", "", "Display color")
	cmd.Flags().Float64("balance", 0, "Opening balance")
	cmd.Flags().Float64("credit-limit", 0, "Credit limit for credit accounts")
	cmd.Flags().Int("closing-day", 0, "Statement closing day for credit accounts")
	cmd.Flags().Int("due-day", 0, "Payment due day for credit accounts")

	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runAccountAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	accType, _ := flags.GetString("type")
	bank, _ := flags.GetString("bank")
	color, _ := flags.GetString("color")
	balance, _ := flags.GetFloat64("balance")
	limit, _ := flags.GetFloat64("credit-limit")
	closingDay, _ := flags.GetInt("closing-day")
	dueDay, _ := flags.GetInt("due-day")

	acc := model.Account{
		ID:      ledger.NewID(),
		Name:    name,
		Type:    model.AccountType(accType),
		BankID:  bank,
		Color:   color,
		Balance: balance,
	}
	switch acc.Type {
	case model.AccountChecking, model.AccountSavings, model.AccountInvestment:
	case model.AccountCredit:
		acc.IsCredit = true
		acc.Credit = &model.CreditDetails{Limit: limit, ClosingDay: closingDay, DueDay: dueDay}
	default:
		return common.NewUserError("Unknown account type "+accType, common.ErrInvalidEntity)
	}

	a, err := openForWrite(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := ledger.Save(cmd.Context(), a.ledger, acc); err != nil {
		return common.NewUserError("Could not add account", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added account %s (%s)", acc.Name, acc.ID)))
	syncAfterWrite(cmd, a)
	return nil
}

func accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			accounts, err := storage.All[model.Account](cmd.Context(), a.store)
			if err != nil {
				return err
			}

			total := decimal.Zero
			for _, acc := range accounts {
				if !acc.IsCredit {
					total = total.Add(decimal.NewFromFloat(acc.Balance))
				}
			}

			fmt.Print(cli.FormatAccounts(accounts))
			fmt.Println(cli.MoneyIcon + " Total: " + cli.FormatMoney(total.InexactFloat64()))
			return nil
		},
	}
}
