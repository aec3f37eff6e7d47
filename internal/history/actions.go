package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	dbpkg "github.com/dtnitsch/archive-downloader/pkg/db"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// HistoryAction lists recorded runs, or the files of one run when a run ID
// is given.
func HistoryAction(c *cli.Context) error {
	path := c.String("history-db")
	if path == "" {
		return cli.Exit("Error: --history-db (or ADL_HISTORY_DB) is required", 1)
	}

	database, err := dbpkg.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: failed to open database: %v", err), 1)
	}
	defer database.Close()

	format := strings.ToLower(c.String("format"))
	if c.NArg() == 0 {
		runs, err := database.ListRuns(c.Int("limit"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		return exitOnError(WriteRuns(os.Stdout, runs, format))
	}

	runID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: invalid run ID: %s", c.Args().First()), 1)
	}
	run, err := database.GetRunByID(runID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	files, err := database.GetRunFiles(runID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return exitOnError(WriteRun(os.Stdout, run, files, format))
}

func exitOnError(err error) error {
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

// WriteRuns prints the run table, or marshals runs for json/yaml.
func WriteRuns(w io.Writer, runs []dbpkg.Run, format string) error {
	if format == "json" || format == "yaml" {
		return marshal(w, runs, format)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found")
		return err
	}

	fmt.Fprintf(w, "%-6s %-20s %-8s %-8s %-8s %-10s %s\n",
		"ID", "Started", "Total", "Success", "Failed", "Cancelled", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-6d %-20s %-8d %-8d %-8d %-10t %s\n",
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.TotalCount,
			r.SuccessCount,
			r.FailedCount,
			r.Cancelled,
			r.SourceURL,
		)
	}
	_, err := fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	return err
}

// WriteRun prints one run with its per-file outcomes.
func WriteRun(w io.Writer, run *dbpkg.Run, files []dbpkg.RunFile, format string) error {
	if format == "json" || format == "yaml" {
		return marshal(w, struct {
			Run   *dbpkg.Run      `json:"run" yaml:"run"`
			Files []dbpkg.RunFile `json:"files" yaml:"files"`
		}{run, files}, format)
	}

	fmt.Fprintf(w, "Run %d: %s -> %s\n", run.RunID, run.SourceURL, run.OutputDir)
	if run.Extensions != "" {
		fmt.Fprintf(w, "File types: %s\n", run.Extensions)
	}
	fmt.Fprintf(w, "Successful: %d, Failed: %d, Total: %d\n\n", run.SuccessCount, run.FailedCount, run.TotalCount)
	for _, f := range files {
		line := fmt.Sprintf("%4d  %-10s %s", f.Position, f.Status, f.Filename)
		if f.Resumed {
			line += " (resumed)"
		}
		if f.Error != "" {
			line += ": " + f.Error
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func marshal(w io.Writer, v any, format string) error {
	var data []byte
	var err error
	if format == "yaml" {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	_, err = w.Write(data)
	return err
}
