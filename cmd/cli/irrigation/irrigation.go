package irrigation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/crucial707/irrigation/cmd/cli/config"
	"github.com/crucial707/irrigation/cmd/cli/output"
	"github.com/crucial707/irrigation/internal/models"
	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// ==========================
// Init
// ==========================
func Init(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		listCmd(),
		createCmd(),
		deleteCmd(),
	)
}

// ==========================
// LIST
// ==========================
func listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all irrigation schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := do("GET", "/irrigation", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return apiError(status, body)
			}

			var records map[string]models.Irrigation
			if err := json.Unmarshal(body, &records); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				b, _ := json.MarshalIndent(records, "", "  ")
				fmt.Fprintln(out, string(b))
				return nil
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No irrigation schedules.")
				return nil
			}

			ids := make([]string, 0, len(records))
			for id := range records {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			rows := make([][]interface{}, 0, len(ids))
			for _, id := range ids {
				r := records[id]
				rows = append(rows, []interface{}{
					id,
					when(r),
					strings.Join(r.Times, ", "),
					r.Duration,
					r.Status,
					time.UnixMilli(r.CreatedAt).Format(time.DateTime),
				})
			}
			output.RenderTable(out, []string{"ID", "When", "Times", "Minutes", "Status", "Created"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print raw JSON")
	return cmd
}

// when renders the dates of a one-off schedule or the weekdays of a recurring one.
func when(r models.Irrigation) string {
	if r.Recurring() {
		return "every " + strings.Join(r.Days, ", ")
	}
	return strings.Join(r.SpecificDates, ", ")
}

// ==========================
// CREATE
// ==========================
func createCmd() *cobra.Command {
	var (
		dates    []string
		days     []string
		times    []string
		duration int
		status   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an irrigation schedule",
		Example: `  irrigactl create --date 2025-07-09 --time 18:00 --time 20:00 --duration 30
  irrigactl create --day Mon --day Thu --time 06:00 --duration 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := models.IrrigationInput{
				Times:         times,
				Days:          days,
				SpecificDates: dates,
				Duration:      models.Minutes(duration),
				Status:        models.Status(status),
			}
			if payload.Days == nil {
				payload.Days = []string{}
			}
			if payload.SpecificDates == nil {
				payload.SpecificDates = []string{}
			}
			b, _ := json.Marshal(payload)

			body, code, err := do("POST", "/irrigation", b)
			if err != nil {
				return err
			}
			if code != http.StatusCreated {
				return apiError(code, body)
			}

			var out struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created irrigation %s\n", out.ID)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&dates, "date", nil, "calendar date (YYYY-MM-DD), repeatable")
	cmd.Flags().StringSliceVar(&days, "day", nil, "weekday for recurring schedules, repeatable")
	cmd.Flags().StringSliceVar(&times, "time", nil, "time of day (HH:MM), repeatable")
	cmd.Flags().IntVar(&duration, "duration", 1, "duration in minutes")
	cmd.Flags().StringVar(&status, "status", string(models.StatusPending), "Pending, InProgress or Completed")

	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an irrigation schedule",
		Args:  cobra.ExactArgs(1),

		// Push keys start with '-'; with flag parsing off the id is never read as a flag.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := do("DELETE", "/irrigation/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if status != http.StatusNoContent {
				return apiError(status, body)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Irrigation deleted")
			return nil
		},
	}
}

func do(method, path string, payload []byte) ([]byte, int, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, config.APIURL()+path, rdr)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call API: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// apiError turns a non-2xx response into an error, including field messages when present.
func apiError(status int, body []byte) error {
	var e struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return fmt.Errorf("API error (%d): %s", status, strings.TrimSpace(string(body)))
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("API error (%d): %s", status, e.Error)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Errorf("API error (%d): %s (%s)", status, e.Error, strings.Join(parts, "; "))
}
