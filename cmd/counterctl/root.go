package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"ChainCounter/sdk/go/counter"

	"github.com/spf13/cobra"
)

type options struct {
	apiURL  string
	timeout time.Duration
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "counterctl",
		Short:         "计数器会话命令行工具",
		Long:          "通过 counterd 的 HTTP 接口连接钱包、读取与修改链上计数器",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("COUNTER_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", defaultURL, "counterd API 地址 (COUNTER_API_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "单次请求超时，写操作包含等待确认的时间")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "输出格式: text|json")

	root.AddCommand(
		newStateCmd(opts),
		newActionCmd(opts, "connect", "连接钱包并读取计数", (*counter.Client).Connect),
		newActionCmd(opts, "increment", "计数加一并等待确认", (*counter.Client).Increment),
		newActionCmd(opts, "decrement", "计数减一并等待确认", (*counter.Client).Decrement),
		newActionCmd(opts, "reset", "计数归零并等待确认", (*counter.Client).Reset),
		newActionCmd(opts, "refresh", "重新读取链上计数", (*counter.Client).Refresh),
		newChainCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

func (o *options) client() (*counter.Client, error) {
	return counter.NewClient(o.apiURL, nil)
}

func (o *options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "查看当前会话状态",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd.Context())
			defer cancel()
			st, err := client.State(ctx)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), st)
		},
	}
}

func newActionCmd(opts *options, use, short string, run func(*counter.Client, context.Context) (counter.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd.Context())
			defer cancel()
			st, err := run(client, ctx)
			if err != nil {
				var apiErr *counter.APIError
				if errors.As(err, &apiErr) && apiErr.State != nil {
					_ = opts.print(cmd.OutOrStdout(), *apiErr.State)
				}
				return err
			}
			return opts.print(cmd.OutOrStdout(), st)
		},
	}
}

func newChainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chain",
		Short: "查看链信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.withTimeout(cmd.Context())
			defer cancel()
			snapshot, err := client.Chain(ctx)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(snapshot)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "chain=%s id=%s block=%s %s\n",
				snapshot.Name, snapshot.ChainID, snapshot.BlockNumber, snapshot.Notes)
			return err
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "持续输出状态变化，直到中断",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			err = client.Watch(cmd.Context(), func(st counter.State) {
				_ = opts.print(cmd.OutOrStdout(), st)
			})
			if err != nil && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func (o *options) print(w io.Writer, st counter.State) error {
	if o.output == "json" {
		return json.NewEncoder(w).Encode(st)
	}
	value := "-"
	if st.Counter != nil {
		value = *st.Counter
	}
	line := fmt.Sprintf("[%d] %s counter=%s", st.Revision, st.Connection, value)
	if st.Busy {
		line += " busy"
	}
	if st.WalletAddress != "" {
		line += " wallet=" + st.WalletAddress
	}
	if st.Owner != "" {
		line += " owner=" + st.Owner
	}
	if st.LastTx != nil {
		line += fmt.Sprintf(" last_tx=%s@%d", st.LastTx.TxHash, st.LastTx.Block)
	}
	if st.Error != nil {
		line += fmt.Sprintf(" error=%s(%s)", st.Error.Code, st.Error.Message)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
