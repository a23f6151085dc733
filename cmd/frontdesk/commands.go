package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/frontdesk/internal/config"
	"github.com/kalambet/frontdesk/internal/export"
	"github.com/kalambet/frontdesk/internal/scenario"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		showStatus(cmd.Context(), client, cfg)
		return nil
	},
}

func showStatus(ctx context.Context, client *apiClient, cfg config.Config) {
	var health struct {
		Status       string `json:"status"`
		ActiveShifts int    `json:"active_shifts"`
	}
	resp, err := client.get(ctx, "/health")
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case decodeJSON(resp, &health) != nil || health.Status != "ok":
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	default:
		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Shifts", "%d active", health.ActiveShifts)
	}

	if cfg.Gemini.APIKey == "" {
		printStatus("Gemini", "offline (no API key)")
	} else {
		printStatus("Gemini", "%s", cfg.Gemini.Model)
	}
	printStatus("Storage", "%s", cfg.Storage.Driver)
	if cfg.Storage.Driver == "sqlite" {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	}
	if cfg.Server.AdminToken == "" {
		printStatus("Admin", "disabled")
	} else {
		printStatus("Admin", "enabled")
	}
}

// openOutput returns the file named by path, or stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// --- surveys ---

var surveysCmd = &cobra.Command{
	Use:   "surveys",
	Short: "Work with submitted reflection surveys",
}

var surveysExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download all survey responses as CSV (requires the admin token)",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		w, closeFn, err := openOutput(cmd, output)
		if err != nil {
			return err
		}
		if err := client.download(cmd.Context(), "/admin/surveys.csv", w); err != nil {
			closeFn()
			return err
		}
		if err := closeFn(); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Wrote %s", output)
		}
		return nil
	},
}

func init() {
	surveysExportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	surveysCmd.AddCommand(surveysExportCmd)
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <student-id>",
	Short: "Generate and download a student's assessment report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studentID := args[0]
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = export.ReportFilename(studentID)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return downloadReport(cmd.Context(), client, studentID, output)
	},
}

func downloadReport(ctx context.Context, client *apiClient, studentID, output string) error {
	base := "/sessions/" + url.PathEscape(studentID)

	printStep("Generating rubric feedback for %s...", studentID)
	resp, err := client.post(ctx, base+"/report", nil)
	if err != nil {
		return err
	}
	var result struct {
		Degraded bool `json:"degraded"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if result.Degraded {
		printWarning("mentor unavailable; the report contains fallback feedback")
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := client.download(ctx, base+"/report.doc", f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Wrote %s", output)
	return nil
}

func init() {
	reportCmd.Flags().StringP("output", "o", "", "output file path (default: Assessment_Report_<id>.doc)")
}

// --- transcript ---

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Download or read scenario transcripts",
}

var transcriptGetCmd = &cobra.Command{
	Use:   "get <student-id> <scenario>",
	Short: "Download a scenario transcript as PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := scenario.Parse(args[1])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = export.TranscriptFilename(args[0], id)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		path := fmt.Sprintf("/sessions/%s/scenarios/%s/transcript.pdf", url.PathEscape(args[0]), id)
		if err := client.download(cmd.Context(), path, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		printSuccess("Wrote %s", output)
		return nil
	},
}

var transcriptReadCmd = &cobra.Command{
	Use:   "read <file.pdf>",
	Short: "Print the text of a downloaded transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading transcript: %w", err)
		}
		text, err := export.ReadTranscriptText(data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	transcriptGetCmd.Flags().StringP("output", "o", "", "output file path")
	transcriptCmd.AddCommand(transcriptGetCmd)
	transcriptCmd.AddCommand(transcriptReadCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file. Secrets can only be set via environment variables.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %v)", err, config.ValidKeys())
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
