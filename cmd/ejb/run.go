package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/fakes"
)

type runOptions struct {
	transactions int
	workers      int
	failEvery    int
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a node and submit a stream of QA transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.workers <= 0 {
				return errors.InvalidInput(errors.PhaseConfig, "workers must be positive")
			}
			return runNode(cmd.Context(), cmd.OutOrStdout(), a, opts)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&opts.transactions, "transactions", "n", 100, "number of transactions to submit")
	flags.IntVarP(&opts.workers, "workers", "w", 4, "number of concurrent submitters")
	flags.IntVar(&opts.failEvery, "fail-every", 0, "make every n-th transaction fail with a service error")
	return cmd
}

// runNode submits opts.transactions transactions from opts.workers
// goroutines and prints the resulting node state. Service errors are
// counted; any other error stops the run.
func runNode(ctx context.Context, out io.Writer, a *app, opts runOptions) error {
	in, err := startNode(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			a.log.Error("failed to stop node", zap.Error(err))
		}
	}()

	var next, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.workers; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				i := next.Add(1)
				if i > int64(opts.transactions) {
					return nil
				}
				txID, args := transaction(i, opts.failEvery)
				err := in.node.SubmitTransaction(qaServiceID, txID, args)
				var e *errors.Error
				switch {
				case err == nil:
				case errors.As(err, &e) && e.Kind == errors.KindService:
					failed.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	height, value, err := in.status()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "height: %d\n", height)
	fmt.Fprintf(out, "failed: %d\n", failed.Load())
	fmt.Fprintf(out, "commits: %d\n", in.qa.Commits())
	fmt.Fprintf(out, "value: %s\n", value)
	return nil
}

// transaction returns the i-th transaction of a run.
func transaction(i int64, failEvery int) (int32, []byte) {
	if failEvery > 0 && i%int64(failEvery) == 0 {
		return fakes.TxExecutionError, append([]byte{1}, fmt.Sprintf("rejected %d", i)...)
	}
	return fakes.TxPutValue, fmt.Appendf(nil, "tx-%d", i)
}
