package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/screwyprof/stakeflow/analytics"
	"github.com/screwyprof/stakeflow/pkg/amount"
	"github.com/screwyprof/stakeflow/pkg/pgxdb"
	"github.com/screwyprof/stakeflow/pkg/starknet"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/staking/intentstore"
	"github.com/screwyprof/stakeflow/web/handler/bind"
	"github.com/screwyprof/stakeflow/web/store/pgxstore"
	"github.com/screwyprof/stakeflow/web/strk"
)

var errMissingMessage = errors.New("an error message is required")

func flowCommand() *cli.Command {
	return &cli.Command{
		Name:  "flow",
		Usage: "Show how delegated stake flows from size buckets to validators",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "first day, YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "last day, YYYY-MM-DD"},
			&cli.IntFlag{Name: "top", Usage: "validators shown before grouping the rest", Value: bind.DefaultTop},
		},
		Action: runFlow,
	}
}

func runFlow(ctx context.Context, cmd *cli.Command) error {
	dates, err := strk.ParseDateRange(cmd.String("from"), cmd.String("to"), time.Now())
	if err != nil {
		return err
	}

	store, closer, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closer()

	records, err := store.FindFlowRecords(ctx, dates)
	if err != nil {
		return err
	}

	result := analytics.Aggregate(records, int(cmd.Int("top")))
	if result.IsEmpty() {
		fmt.Fprintln(cmd.Root().Writer, "No delegations in range.")
		return nil
	}

	return renderFlow(cmd.Root().Writer, result)
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Build the multicall for a (split) delegation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Usage: "delegating account", Required: true, Sources: cli.EnvVars("STAKECTL_ACCOUNT")},
			&cli.StringFlag{Name: "amount", Usage: "STRK to delegate; prompted for when omitted"},
			&cli.StringFlag{Name: "primary", Usage: "primary validator pool address", Required: true},
			&cli.StringFlag{Name: "primary-name", Usage: "primary validator name"},
			&cli.BoolFlag{Name: "split", Usage: "send 10% to a second, low-stake validator"},
			&cli.StringFlag{Name: "secondary", Usage: "secondary pool address; drawn from the bottom validators when omitted"},
			&cli.StringFlag{Name: "secondary-name", Usage: "secondary validator name"},
			&cli.IntFlag{Name: "bottom", Usage: "size of the secondary candidate list", Value: bind.DefaultBottom},
			&cli.StringSliceFlag{Name: "delegated", Usage: "pools the account already delegates to"},
		},
		Action: runPlan,
	}
}

func runPlan(ctx context.Context, cmd *cli.Command) error {
	amt := cmd.String("amount")
	if amt == "" {
		var err error
		if amt, err = promptAmount(); err != nil {
			return err
		}
	}

	intent := staking.Intent{
		Amount:       amt,
		Primary:      staking.Validator{PoolAddress: cmd.String("primary"), Name: cmd.String("primary-name")},
		SplitEnabled: cmd.Bool("split"),
	}
	if pool := cmd.String("secondary"); pool != "" {
		intent.Secondary = &staking.Validator{PoolAddress: pool, Name: cmd.String("secondary-name")}
	}

	if intent.SplitEnabled && intent.Secondary == nil {
		secondary, err := drawSecondary(ctx, cmd, intent.Primary.PoolAddress)
		if err != nil {
			return err
		}
		intent.Secondary = &secondary
	}

	planner := staking.NewPlanner(starknet.NewToken(newRPCClient(cmd), cmd.String("token")))

	plan, err := planner.Plan(ctx, intent, staking.PlanContext{
		Account:        cmd.String("account"),
		DelegatedPools: cmd.StringSlice("delegated"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(bind.GetPlanResponse(plan))
}

// newRPCClient applies the same retry and throttling settings as the web server.
func newRPCClient(cmd *cli.Command) *starknet.Client {
	rateLimit := cmd.Float("rpc-rate-limit")
	return starknet.NewClient(
		&http.Client{Timeout: cmd.Duration("rpc-timeout")},
		cmd.String("rpc-url"),
		starknet.WithMaxTries(cmd.Uint("rpc-max-tries")),
		starknet.WithRateLimit(rateLimit, max(1, int(rateLimit))),
	)
}

func drawSecondary(ctx context.Context, cmd *cli.Command, primary string) (staking.Validator, error) {
	store, closer, err := openStore(ctx, cmd)
	if err != nil {
		return staking.Validator{}, err
	}
	defer closer()

	bottom, err := store.FindBottomValidators(ctx, int(cmd.Int("bottom")))
	if err != nil {
		return staking.Validator{}, err
	}

	return staking.SelectSecondary(bind.SecondaryCandidates(bottom), primary, staking.RandomPicker())
}

func intentsCommand() *cli.Command {
	account := &cli.StringFlag{Name: "account", Usage: "account the intents belong to", Required: true, Sources: cli.EnvVars("STAKECTL_ACCOUNT")}
	pool := &cli.StringFlag{Name: "pool", Usage: "delegation pool address", Required: true}

	return &cli.Command{
		Name:  "intents",
		Usage: "Manage locally remembered unstake intents",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List intents with their claim times",
				Flags: []cli.Flag{
					account,
					&cli.BoolFlag{Name: "offline", Usage: "skip the on-chain unpool times"},
				},
				Action: runIntentsList,
			},
			{
				Name:  "add",
				Usage: "Remember an exit request",
				Flags: []cli.Flag{
					account,
					pool,
					&cli.StringFlag{Name: "name", Usage: "validator name"},
					&cli.StringFlag{Name: "amount", Usage: "STRK requested", Required: true},
					&cli.DurationFlag{Name: "period", Usage: "unstaking period", Value: staking.DefaultUnstakingPeriod},
				},
				Action: runIntentsAdd,
			},
			{
				Name:  "remove",
				Usage: "Forget the intent of a pool, usually after claiming",
				Flags: []cli.Flag{
					account,
					pool,
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
				},
				Action: runIntentsRemove,
			},
		},
	}
}

func runIntentsList(ctx context.Context, cmd *cli.Command) error {
	intents, err := openIntents(cmd)
	if err != nil {
		return err
	}

	account := cmd.String("account")
	list, err := intents.List(ctx, account)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.Root().Writer, "No pending unstake intents.")
		return nil
	}

	unpoolTimes := map[string]time.Time{}
	if !cmd.Bool("offline") {
		unpoolTimes, err = chainUnpoolTimes(ctx, cmd, account)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	return renderIntents(cmd.Root().Writer, staking.ReconcileIntents(list, unpoolTimes, now), now)
}

func chainUnpoolTimes(ctx context.Context, cmd *cli.Command, account string) (map[string]time.Time, error) {
	store, closer, err := openStore(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer closer()

	unpools, err := store.FindUnpools(ctx, starknet.NormalizeAddress(account))
	if err != nil {
		return nil, err
	}

	times := make(map[string]time.Time, len(unpools))
	for _, u := range unpools {
		times[u.PoolAddress] = u.UnpoolTime
	}
	return times, nil
}

func runIntentsAdd(ctx context.Context, cmd *cli.Command) error {
	d, err := amount.ParsePositive(cmd.String("amount"))
	if err != nil {
		return err
	}

	intents, err := openIntents(cmd)
	if err != nil {
		return err
	}

	intent := staking.NewUnstakeIntent(d.String(), starknet.NormalizeAddress(cmd.String("pool")),
		cmd.String("name"), time.Now(), cmd.Duration("period"))
	if err := intents.Add(ctx, cmd.String("account"), intent); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Claimable %s (%s)\n",
		humanize.Time(intent.CanClaimAt), intent.CanClaimAt.Format(time.RFC3339))
	return nil
}

func runIntentsRemove(ctx context.Context, cmd *cli.Command) error {
	pool := starknet.NormalizeAddress(cmd.String("pool"))

	if !cmd.Bool("yes") && term.IsTerminal(int(os.Stdin.Fd())) {
		_, err := (&promptui.Prompt{
			Label:     fmt.Sprintf("Forget the unstake intent for %s", pool),
			IsConfirm: true,
		}).Run()
		if err != nil {
			return nil // declined
		}
	}

	intents, err := openIntents(cmd)
	if err != nil {
		return err
	}

	return intents.Remove(ctx, cmd.String("account"), pool)
}

func explainCommand() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Classify a wallet or node error message",
		ArgsUsage: "<message>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			msg := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(msg) == "" {
				return errMissingMessage
			}

			failure := staking.ClassifyTxMessage(msg)
			fmt.Fprintf(cmd.Root().Writer, "%s: %s\n", failure.Category, failure.Message)
			return nil
		},
	}
}

func openStore(ctx context.Context, cmd *cli.Command) (*pgxstore.Store, func(), error) {
	db, err := pgxdb.NewConnection(ctx, cmd.String("database-url"),
		pgxdb.WithPoolSize(1, 2),
		pgxdb.WithApplicationName("stakectl"),
	)
	if err != nil {
		return nil, nil, err
	}

	store, closer := pgxstore.New(db)
	return store, closer, nil
}

func openIntents(cmd *cli.Command) (*intentstore.FileStore, error) {
	return intentstore.New(cmd.String("intents-dir"))
}

func promptAmount() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("%w: --amount is required", staking.ErrInputValidation)
	}

	return (&promptui.Prompt{
		Label: "Amount (STRK)",
		Validate: func(input string) error {
			_, err := amount.ParsePositive(input)
			return err
		},
	}).Run()
}

func renderFlow(w io.Writer, result analytics.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "BUCKET\tDELEGATIONS\tSTAKE (STRK)\tSHARE")
	for _, s := range result.BucketStats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f%%\n",
			s.Label, humanize.Comma(int64(s.Count)), humanize.CommafWithDigits(s.TotalStake, 2), s.Percentage)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FROM\tTO\tSTAKE (STRK)\t")
	for _, l := range result.Graph.Links {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", l.Source, l.Target, humanize.CommafWithDigits(l.OriginalValue, 2))
	}

	return tw.Flush()
}

func renderIntents(w io.Writer, views []staking.IntentView, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "POOL\tVALIDATOR\tAMOUNT\tCLAIMABLE\tSOURCE\t")
	for _, v := range views {
		when := humanize.RelTime(v.ClaimableAt, now, "ago", "from now")
		if v.Claimable {
			when = "now"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", v.PoolAddress, v.ValidatorName, v.Amount, when, v.Source)
	}

	return tw.Flush()
}
