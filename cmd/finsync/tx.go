package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finsync/internal/cli"
	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction", "transactions"},
		Short:   "Manage transactions",
	}

	cmd.PersistentFlags().Bool("offline", false, "Do not contact the remote store after the change")

	cmd.AddCommand(txAddCmd())
	cmd.AddCommand(txPayCmd())
	cmd.AddCommand(txDeleteCmd())
	cmd.AddCommand(txListCmd())
	return cmd
}

// openForWrite opens the app for a mutating command, probing the remote
// unless --offline was given.
func openForWrite(cmd *cobra.Command) (*app, error) {
	offline, _ := cmd.Flags().GetBool("offline")
	return openApp(cmd.Context(), appOptions{probe: !offline})
}

func txAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Long: `Add an income, expense or transfer.

Fixed transactions are created for the next 12 months. Installment purchases
(--recurrence installment --installments N) are split into N monthly
transactions. Only the first occurrence keeps the --paid flag.`,
		Example: `  finsync tx add --description "Mercado" --amount 80.50 --account acc-1 --paid
  finsync tx add --description "Aluguel" --amount 2200 --account acc-1 --recurrence fixed
  finsync tx add --description "Notebook" --amount 500 --account card --recurrence installment --installments 10`,
		RunE: runTxAdd,
	}

	cmd.Flags().String("description", "", "Description (required)")
	cmd.Flags().Float64("amount", 0, "Amount, always positive (required)")
	cmd.Flags().String("type", string(model.TypeExpense), "income, expense or transfer")
	cmd.Flags().String("account", "", "Account ID (required)")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD (default today)")
	cmd.Flags().String("due-date", "", "Due date as YYYY-MM-DD (default date)")
	cmd.Flags().String("category", "Outros", "Category")
	cmd.Flags().String("subcategory", "", "Sub-category")
	cmd.Flags().String("payment-method", "", "Payment method")
	cmd.Flags().String("recurrence", string(model.RecurrenceOneTime), "one_time, fixed or installment")
	cmd.Flags().Int("installments", 0, "Number of installments")
	cmd.Flags().Bool("paid", false, "Mark the transaction as paid")
	cmd.Flags().StringSlice("tag", nil, "Tag IDs")

	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runTxAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	description, _ := flags.GetString("description")
	amount, _ := flags.GetFloat64("amount")
	txnType, _ := flags.GetString("type")
	account, _ := flags.GetString("account")
	date, _ := flags.GetString("date")
	dueDate, _ := flags.GetString("due-date")
	category, _ := flags.GetString("category")
	subCategory, _ := flags.GetString("subcategory")
	paymentMethod, _ := flags.GetString("payment-method")
	recurrence, _ := flags.GetString("recurrence")
	installments, _ := flags.GetInt("installments")
	paid, _ := flags.GetBool("paid")
	tags, _ := flags.GetStringSlice("tag")

	a, err := openForWrite(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	added, err := a.ledger.AddTransaction(cmd.Context(), model.Transaction{
		Description:      description,
		Amount:           amount,
		Type:             model.TransactionType(txnType),
		Account:          account,
		Date:             date,
		DueDate:          dueDate,
		Category:         category,
		SubCategory:      subCategory,
		PaymentMethod:    paymentMethod,
		Recurrence:       model.Recurrence(recurrence),
		InstallmentCount: installments,
		IsPaid:           paid,
		Tags:             tags,
	})
	if err != nil {
		return common.NewUserError("Could not add transaction", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added %s", cli.Plural(len(added), "transaction"))))
	fmt.Print(cli.FormatTransactions(added))
	syncAfterWrite(cmd, a)
	return nil
}

func txPayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Mark a transaction as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unpaid, _ := cmd.Flags().GetBool("unpaid")

			a, err := openForWrite(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			txn, err := a.ledger.SetPaid(cmd.Context(), args[0], !unpaid)
			if err != nil {
				return common.NewUserError("Could not update transaction", err)
			}

			state := "paid"
			if unpaid {
				state = "unpaid"
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Marked %q as %s", txn.Description, state)))
			syncAfterWrite(cmd, a)
			return nil
		},
	}

	cmd.Flags().Bool("unpaid", false, "Mark as unpaid instead")
	return cmd
}

func txDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete transactions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openForWrite(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			for _, id := range args {
				if err := a.ledger.DeleteTransaction(cmd.Context(), id); err != nil {
					return common.NewUserError("Could not delete transaction "+id, err)
				}
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted %s", cli.Plural(len(args), "transaction"))))
			syncAfterWrite(cmd, a)
			return nil
		},
	}
}

func txListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, _ := cmd.Flags().GetString("account")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := openApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			var txns []model.Transaction
			if account != "" {
				txns, err = a.store.TransactionsByAccount(cmd.Context(), account)
				if len(txns) > limit && limit > 0 {
					txns = txns[:limit]
				}
			} else {
				txns, err = a.store.RecentTransactions(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			fmt.Print(cli.FormatTransactions(txns))
			return nil
		},
	}

	cmd.Flags().String("account", "", "Only transactions of this account")
	cmd.Flags().Int("limit", 20, "Maximum number of transactions")
	return cmd
}
