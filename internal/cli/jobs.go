package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect submitted jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			jobs, err := st.ListJobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-9s  %-6s  %-10s  %-10s  %s\n", "ID", "PROCESSOR", "SITE", "STATE", "SIZE", "CREATED")
			fmt.Fprintf(out, "%-6s  %-9s  %-6s  %-10s  %-10s  %s\n", "--", "---------", "----", "-----", "----", "-------")
			for _, j := range jobs {
				fmt.Fprintf(out, "%-6d  %-9d  %-6d  %-10s  %-10s  %s\n",
					j.ID, j.ProcessorID, j.SiteID, j.State,
					humanize.Bytes(uint64(len(j.Definition))), humanize.Time(j.CreatedAt))
			}
			fmt.Fprintf(out, "\n%s jobs as of %s\n", humanize.Comma(int64(len(jobs))), time.Now().Format(time.RFC3339))
			return nil
		},
	})
	return cmd
}
