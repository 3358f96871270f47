package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"geosnap/batch"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <jobs.yaml>",
		Short: "Run several photo folders one after another",
		Long: `Runs the photos command once per job listed in a YAML file:

  jobs:
    - input: fotos/lunes
      output: reportes
      project: lunes
    - input: fotos/martes
      output: reportes
      include_no_gps: true

A failing job does not stop the batch. Interrupting cancels the job in
progress and every job after it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := batch.LoadJobs(args[0])
			if err != nil {
				return err
			}
			e, err := root.setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			q := batch.NewQueue(e.service(), e.log)
			for _, req := range reqs {
				q.Add(req)
			}
			res := q.ProcessAll(cmd.Context(), printProgress(cmd.ErrOrStderr()))

			out := cmd.OutOrStdout()
			for _, d := range res.Details {
				fmt.Fprintln(out, d)
			}
			fmt.Fprintln(out, q.Summary())
			if res.Failed > 0 || res.Cancelled > 0 {
				return fmt.Errorf("%d of %d jobs failed, %d cancelled", res.Failed, res.Total, res.Cancelled)
			}
			return nil
		},
	}
	return cmd
}
