package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"remanejo/internal/amqp"
	"remanejo/internal/realloc"
)

func newEnqueueCmd(a *app) *cobra.Command {
	var fund, natures string
	cmd := &cobra.Command{
		Use:   "enqueue SOURCE",
		Short: "Queue a run for the worker",
		Long: `Publish a run request for remanejo-worker. SOURCE is a workbook path
readable by the worker or gsheet:<spreadsheet id>[/<sheet name>].`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.AMQPEnabled() {
				return fmt.Errorf("AMQP_URL is not configured")
			}
			req := amqp.NewRunRequest(args[0])
			if cmd.Flags().Changed("prohibited-fund") {
				code, err := realloc.ParseProhibitedFund(fund)
				if err != nil {
					return err
				}
				n := int(code)
				req.ProhibitedFund = &n
			}
			if cmd.Flags().Changed("prohibited-natures") {
				req.ProhibitedNatures = realloc.ParseCodeList(natures).Sorted()
			}
			if err := req.Validate(); err != nil {
				return err
			}

			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.cfg.AMQPEventsQueue)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer client.Close()

			if err := client.PublishRunRequest(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), req.ID)
			return nil
		},
	}
	addRuleFlags(cmd, &fund, &natures)
	return cmd
}
