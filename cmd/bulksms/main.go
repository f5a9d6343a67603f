// Command bulksms sends SMS through the configured gateway and looks up
// delivery status and cost.
//
//	bulksms [-r routing] [-s sender] [-t id:secret] [-l user:pass] [-p] [-at time] recipient[,recipient] message
//	bulksms status <handle>
//	bulksms cost <handle>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/pkg/bulksms"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	commandCost = "cost"
	commandStat = "status"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliOptions struct {
	routing   string
	sender    string
	token     string
	login     string
	priority  bool
	scheduled string
	args      []string
}

func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("bulksms", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: bulksms [flags] recipient[,recipient...] message")
		fmt.Fprintln(stderr, "       bulksms [flags] status <handle>")
		fmt.Fprintln(stderr, "       bulksms [flags] cost <handle>")
		fs.PrintDefaults()
	}

	opts := &cliOptions{}
	fs.StringVar(&opts.routing, "r", "", "routing group to deliver with (ECONOMY, STANDARD, PREMIUM); overrides BULKSMS_DEFAULT_ROUTING")
	fs.StringVar(&opts.sender, "s", "", "sender ID to deliver with")
	fs.StringVar(&opts.token, "t", "", "token as id:secret; overrides BULKSMS_AUTH_TOKEN")
	fs.StringVar(&opts.login, "l", "", "login as username:password; overrides BULKSMS_AUTH_LOGIN")
	fs.BoolVar(&opts.priority, "p", false, "deliver on the premium route")
	fs.StringVar(&opts.scheduled, "at", "", "RFC3339 time to schedule delivery for")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.args = fs.Args()
	if len(opts.args) != 2 {
		fs.Usage()
		return nil, errors.New("expected exactly two arguments")
	}
	return opts, nil
}

// applyOverrides exports command line credentials and routing into the
// environment read by config.Load.
func (o *cliOptions) applyOverrides() error {
	if o.token != "" {
		if _, _, err := config.SplitPair(o.token); err != nil {
			return fmt.Errorf("-t: %w", err)
		}
		if err := os.Setenv("BULKSMS_AUTH_TOKEN", o.token); err != nil {
			return err
		}
	}
	if o.login != "" {
		if _, _, err := config.SplitPair(o.login); err != nil {
			return fmt.Errorf("-l: %w", err)
		}
		if o.token == "" {
			// The token takes precedence over the login when both are set.
			if err := os.Unsetenv("BULKSMS_AUTH_TOKEN"); err != nil {
				return err
			}
		}
		if err := os.Setenv("BULKSMS_AUTH_LOGIN", o.login); err != nil {
			return err
		}
	}
	if o.routing != "" {
		group, err := config.NormalizeRoutingGroup(o.routing)
		if err != nil {
			return fmt.Errorf("-r: %w", err)
		}
		if err := os.Setenv("BULKSMS_DEFAULT_ROUTING", group); err != nil {
			return err
		}
	}
	return nil
}

func (o *cliOptions) sendOptions() (models.SendOptions, error) {
	raw := make(map[string]any)
	if o.sender != "" {
		raw[models.OptionSender] = o.sender
	}
	if o.priority {
		raw[models.OptionPriority] = true
	}
	if o.scheduled != "" {
		raw[models.OptionScheduledAt] = o.scheduled
	}
	return models.ParseSendOptions(raw)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if err := opts.applyOverrides(); err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitFailed
	}
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitFailed
	}

	client, err := bulksms.New(cfg, bulksms.WithLogger(*log))
	if err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitFailed
	}

	switch opts.args[0] {
	case commandStat:
		status, err := client.DeliveryStatus(ctx, bulksms.DeliveryHandle(opts.args[1]))
		if err != nil {
			fmt.Fprintln(stderr, "bulksms:", err)
			return exitFailed
		}
		fmt.Fprintln(stdout, status)
		return exitOK
	case commandCost:
		cost, err := client.DeliveryCost(ctx, bulksms.DeliveryHandle(opts.args[1]))
		if err != nil {
			fmt.Fprintln(stderr, "bulksms:", err)
			return exitFailed
		}
		fmt.Fprintln(stdout, strconv.FormatFloat(cost, 'f', -1, 64))
		return exitOK
	}

	sendOpts, err := opts.sendOptions()
	if err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitUsage
	}

	result, err := client.Send(ctx, strings.Split(opts.args[0], ","), opts.args[1], sendOpts)
	if err != nil {
		fmt.Fprintln(stderr, "bulksms:", err)
		return exitFailed
	}

	code := exitOK
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(stderr, "%s\t%v\n", outcome.Recipient, outcome.Err)
			code = exitFailed
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", outcome.Recipient, outcome.Handle)
	}
	return code
}
