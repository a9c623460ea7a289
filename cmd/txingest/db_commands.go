package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/itchyny/gojq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/txingest/service/db"
)

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transactions",
		Usage:   "List ingested transaction records",
		Aliases: []string{"txs"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "signer",
				Aliases: []string{"s"},
				Usage:   "Filter by signer address",
			},
			&cli.StringFlag{
				Name:  "since",
				Usage: "Show transactions since this time (RFC3339 format)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of transactions",
				Value:   50,
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied as a filter to each record (e.g. '.fee > 5000')",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			params := db.ListTransactionsParams{
				Signer: c.String("signer"),
				Limit:  int32(c.Int("limit")),
			}
			if sinceStr := c.String("since"); sinceStr != "" {
				since, err := time.Parse(time.RFC3339, sinceStr)
				if err != nil {
					return fmt.Errorf("invalid --since value %q: %w", sinceStr, err)
				}
				params.Since = &since
			}

			txns, err := store.ListTransactions(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			// Apply the jq filter, if any
			if expr := c.String("jq"); expr != "" {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				filtered := make([]*db.Transaction, 0, len(txns))
				for _, txn := range txns {
					ok, err := jqMatch(code, txn)
					if err != nil {
						return err
					}
					if ok {
						filtered = append(filtered, txn)
					}
				}
				txns = filtered
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TXN HASH\tSIGNER\tFEE\tOBSERVED")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					txn.TxnHash,
					txn.Signer,
					txn.Fee,
					time.Unix(txn.UnixEpoch, 0).UTC().Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}

func getTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-transaction",
		Usage:     "Get transaction record details",
		Aliases:   []string{"get"},
		ArgsUsage: "<txn_hash>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}

			txnHash := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txn, err := store.GetTransaction(context.Background(), txnHash)
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txn)
			}

			// Pretty output
			fmt.Printf("Txn Hash:  %s\n", txn.TxnHash)
			fmt.Printf("Signer:    %s\n", txn.Signer)
			fmt.Printf("Fee:       %d\n", txn.Fee)
			fmt.Printf("Observed:  %s\n", time.Unix(txn.UnixEpoch, 0).UTC().Format(time.RFC3339))
			fmt.Printf("Stored:    %s\n", txn.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func countTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count ingested transaction records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "signer",
				Aliases: []string{"s"},
				Usage:   "Count only records for this signer",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			count, err := store.CountTransactions(context.Background(), c.String("signer"))
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(map[string]int64{"count": count})
			}
			fmt.Println(count)
			return nil
		},
	}
}

// getStore connects to the database from the global --database-url flag and
// returns the store plus a closer for the pool.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database URL is required (set --database-url or POSTGRES_DB_URL)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db.NewStore(pool), pool.Close, nil
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// compileJQ parses and compiles a jq filter expression.
func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// jqMatch runs a compiled jq filter against v (via a JSON round-trip so the
// filter sees plain maps) and reports whether the first result is truthy.
func jqMatch(code *gojq.Code, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return false, err
	}

	iter := code.Run(input)
	result, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := result.(error); isErr {
		return false, fmt.Errorf("jq filter error: %w", err)
	}
	return result != nil && result != false, nil
}
