// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ServerStatus is what the observability endpoints report about a server.
type ServerStatus struct {
	Addr           string `json:"addr"`
	Live           bool   `json:"live"`
	Ready          bool   `json:"ready"`
	Version        string `json:"version,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	ActiveMatches  int    `json:"active_matches"`
	ActiveSessions int    `json:"active_sessions"`
	LobbyWaiting   int    `json:"lobby_waiting"`
	Error          string `json:"error,omitempty"`
}

func newStatusCmd(load configLoader) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		Long:  `Query the health probes and metrics of a running server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Observability.Addr == "" {
				return oops.Code("CONFIG_INVALID").Errorf("observability address is required")
			}
			client := &http.Client{Timeout: 2 * time.Second}
			status := queryServerStatus(client, cfg.Observability.Addr)
			if jsonOutput {
				out, err := formatStatusJSON(status)
				if err != nil {
					return err
				}
				cmd.Println(out)
				return nil
			}
			cmd.Print(formatStatusTable(status))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address of the server")
	return cmd
}

// queryServerStatus probes the server at addr. Failures are reported in
// the Error field.
func queryServerStatus(client *http.Client, addr string) ServerStatus {
	status := ServerStatus{Addr: addr}
	base := "http://" + addr

	live, err := probe(client, base+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Live = live
	// A server that is not ready still answers, so only transport errors
	// count here.
	if status.Ready, err = probe(client, base+"/healthz/readiness"); err != nil {
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}

	families, err := scrape(client, base+"/metrics")
	if err != nil {
		status.Error = fmt.Sprintf("failed to read metrics: %v", err)
		return status
	}
	if mf, ok := families["lorenzo_build_info"]; ok && len(mf.GetMetric()) > 0 {
		for _, label := range mf.GetMetric()[0].GetLabel() {
			switch label.GetName() {
			case "version":
				status.Version = label.GetValue()
			case "protocol":
				status.Protocol = label.GetValue()
			}
		}
	}
	status.ActiveMatches = gaugeValue(families, "lorenzo_match_active")
	status.ActiveSessions = gaugeValue(families, "lorenzo_sessions_active")
	status.LobbyWaiting = gaugeValue(families, "lorenzo_lobby_waiting")
	return status
}

func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url) //nolint:noctx // bounded by the client timeout
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

func scrape(client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	resp, err := client.Get(url) //nolint:noctx // bounded by the client timeout
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, oops.Code("METRICS_PARSE_FAILED").Wrap(err)
	}
	return families, nil
}

// gaugeValue sums every series of a gauge; 0 when absent.
func gaugeValue(families map[string]*dto.MetricFamily, name string) int {
	mf, ok := families[name]
	if !ok {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetGauge().GetValue()
	}
	return int(total)
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServerStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVER\tSTATUS\tVERSION\tMATCHES\tSESSIONS\tLOBBY")
	_, _ = fmt.Fprintln(w, "------\t------\t-------\t-------\t--------\t-----")

	switch {
	case status.Error != "":
		_, _ = fmt.Fprintf(w, "%s\tunreachable\t-\t-\t-\t%s\n", status.Addr, status.Error)
	default:
		state := "ready"
		if !status.Ready {
			state = "not ready"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			status.Addr, state, status.Version, status.ActiveMatches, status.ActiveSessions, status.LobbyWaiting)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServerStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
