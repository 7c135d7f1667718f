package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sublime/internal/api"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			status, err := fetchDaemonStatus(cmd, cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}

			titler := cases.Title(language.English)
			pairs := [][2]string{
				{"Daemon", fmt.Sprintf("running (pid %d)", status.PID)},
				{"Bind", status.Bind},
			}
			if status.Session != nil {
				pairs = append(pairs,
					[2]string{"Session", status.Session.Name},
					[2]string{"Cues", strconv.Itoa(status.Session.CueCount)},
				)
			} else {
				pairs = append(pairs, [2]string{"Session", "none"})
			}
			if status.Run != nil {
				pairs = append(pairs,
					[2]string{"Run", titler.String(status.Run.Status)},
					[2]string{"Progress", strconv.Itoa(status.Run.Progress) + "%"},
					[2]string{"Corrected", strconv.Itoa(status.Run.Stats.CorrectedCount)},
				)
				if status.Run.Error != "" {
					pairs = append(pairs, [2]string{"Last error", status.Run.Error})
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValueTable(pairs))
			return nil
		},
	}
}

func fetchDaemonStatus(cmd *cobra.Command, bind, token string) (*api.DaemonStatus, error) {
	url := "http://" + bind + "/api/status"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", bind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, string(body))
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}
