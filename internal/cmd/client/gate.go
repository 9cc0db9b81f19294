package client

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// NewGateCommand constructs the `gate` command group and subcommands.
func NewGateCommand(baseURL BaseURLFunc) *cobra.Command {
	gateCmd := &cobra.Command{Use: "gate", Short: "Gate operations"}

	gateCmd.AddCommand(
		newGateListCommand(baseURL),
		newGateEnqueueCommand(baseURL),
		newGateReleaseCommand(baseURL),
		newGateStatusCommand(baseURL),
		newGateWaitingCommand(baseURL),
		newGateWatchCommand(baseURL),
		newGateResetCommand(baseURL),
	)

	return gateCmd
}

func newGateListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List gates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			if err := getJSON(baseURL()+"/v1/gates", &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newGateEnqueueCommand(baseURL BaseURLFunc) *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue an arrival for a key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			key, _ := cmd.Flags().GetString("key")
			mode, _ := cmd.Flags().GetString("mode")
			payload, _ := cmd.Flags().GetString("payload")
			headerFlags, _ := cmd.Flags().GetStringSlice("header")

			headers := map[string]string{}
			for _, h := range headerFlags {
				k, v, ok := strings.Cut(h, "=")
				if !ok {
					return fmt.Errorf("invalid --header %q; expected key=value", h)
				}
				headers[k] = v
			}

			var out map[string]any
			if err := postJSON(baseURL()+"/v1/gates/enqueue", map[string]any{
				"gate":    gate,
				"key":     key,
				"mode":    mode,
				"payload": []byte(payload),
				"headers": headers,
			}, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	enqueueCmd.Flags().StringP("gate", "g", "", "Gate name")
	enqueueCmd.Flags().StringP("key", "k", "", "Resource key")
	enqueueCmd.Flags().String("mode", "", "Mode override: single|multi")
	enqueueCmd.Flags().String("payload", "", "Opaque payload")
	enqueueCmd.Flags().StringSlice("header", nil, "Header key=value (repeatable)")
	return enqueueCmd
}

func newGateReleaseCommand(baseURL BaseURLFunc) *cobra.Command {
	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Signal that the holder for a key finished",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			key, _ := cmd.Flags().GetString("key")
			mode, _ := cmd.Flags().GetString("mode")
			var out map[string]any
			if err := postJSON(baseURL()+"/v1/gates/release", map[string]any{
				"gate": gate,
				"key":  key,
				"mode": mode,
			}, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	releaseCmd.Flags().StringP("gate", "g", "", "Gate name")
	releaseCmd.Flags().StringP("key", "k", "", "Resource key")
	releaseCmd.Flags().String("mode", "", "Mode override: single|multi")
	return releaseCmd
}

func newGateStatusCommand(baseURL BaseURLFunc) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show a gate's queues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			var out map[string]any
			if err := getJSON(baseURL()+"/v1/gates/status?gate="+url.QueryEscape(gate), &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	statusCmd.Flags().StringP("gate", "g", "", "Gate name")
	return statusCmd
}

func newGateWaitingCommand(baseURL BaseURLFunc) *cobra.Command {
	waitingCmd := &cobra.Command{
		Use:   "waiting",
		Short: "List waiting entries, optionally CEL-filtered",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			filter, _ := cmd.Flags().GetString("filter")
			u := baseURL() + "/v1/gates/waiting?gate=" + url.QueryEscape(gate)
			if filter != "" {
				u += "&filter=" + url.QueryEscape(filter)
			}
			var out map[string]any
			if err := getJSON(u, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	waitingCmd.Flags().StringP("gate", "g", "", "Gate name")
	waitingCmd.Flags().String("filter", "", "CEL filter (server-side)")
	return waitingCmd
}

func newGateWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream admissions for a gate (SSE)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/gates/watch?gate="+url.QueryEscape(gate), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				line := sc.Text()
				if strings.HasPrefix(line, "data: ") {
					fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(line, "data: "))
				}
			}
			return sc.Err()
		},
	}
	watchCmd.Flags().StringP("gate", "g", "", "Gate name")
	return watchCmd
}

func newGateResetCommand(baseURL BaseURLFunc) *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop a gate's persisted state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, _ := cmd.Flags().GetString("gate")
			if err := postJSON(baseURL()+"/v1/gates/reset", map[string]any{"gate": gate}, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "status: OK")
			return nil
		},
	}
	resetCmd.Flags().StringP("gate", "g", "", "Gate name")
	return resetCmd
}
