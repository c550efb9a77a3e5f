package cluster

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/controllers/topology"
	"github.com/mongodb/mongodb-dc-topology/pkg/topologyctl/common"
)

var countNamespace string

func init() {
	StatusCmd.Flags().StringVar(&countNamespace, "count", "", "Also count the documents of this database.collection on the preferred primary of every shard. [optional]")
}

// UpCmd represents the up command
var UpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or resume the cluster described by the topology document",
	Long: `'up' creates every data centre, server and replica set of the topology document, waits for them to
become healthy, registers the shards and applies the zones. It is safe to run again: servers an earlier run
created are reused, and a document that only appends entries grows the existing cluster.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := common.NewSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		st := s.Orchestrator.Apply(cmd.Context())
		if !st.IsOK() {
			return xerrors.Errorf("topology not applied (%s): %w", st.Phase(), st.Err())
		}
		for _, w := range st.Warnings() {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Topology applied")
		return nil
	},
}

// StatusCmd represents the status command
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the role, port, runtime state and health of every server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := common.NewBuiltSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		PrintReport(cmd.OutOrStdout(), s.Orchestrator.Report(cmd.Context()))
		if countNamespace == "" {
			return nil
		}
		counts, err := s.Orchestrator.CountPerShard(cmd.Context(), countNamespace)
		fmt.Fprintln(cmd.OutOrStdout())
		PrintCounts(cmd.OutOrStdout(), countNamespace, counts)
		return err
	},
}

// StopCmd represents the stop command
var StopCmd = &cobra.Command{
	Use:   "stop NAME...",
	Short: "Stop servers, keeping their data",
	Args:  cobra.MinimumNArgs(1),
	RunE: lifecycle(func(s *common.Session, cmd *cobra.Command, names []string) error {
		return s.Orchestrator.Shutdown(cmd.Context(), names...)
	}),
}

// StartCmd represents the start command
var StartCmd = &cobra.Command{
	Use:   "start NAME...",
	Short: "Start stopped servers",
	Args:  cobra.MinimumNArgs(1),
	RunE: lifecycle(func(s *common.Session, cmd *cobra.Command, names []string) error {
		return s.Orchestrator.Startup(cmd.Context(), names...)
	}),
}

// DestroyCmd represents the destroy command
var DestroyCmd = &cobra.Command{
	Use:   "destroy NAME...",
	Short: "Remove servers together with their data",
	Long: `'destroy' force-removes the servers and their data volumes. The names and ports of destroyed servers
are not handed out again; run 'up' to recreate them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: lifecycle(func(s *common.Session, cmd *cobra.Command, names []string) error {
		return s.Orchestrator.Destroy(cmd.Context(), names...)
	}),
}

// ZonesCmd represents the zones command
var ZonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Re-create the collection indexes and the zone ranges of a running cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := common.NewBuiltSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if st := s.Orchestrator.ApplyZones(cmd.Context()); !st.IsOK() {
			return st.Err()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Zones applied to %s\n", s.Topology.Sharding.Namespace())
		return nil
	},
}

func lifecycle(f func(s *common.Session, cmd *cobra.Command, names []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := common.NewBuiltSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return f(s, cmd, args)
	}
}

// PrintReport writes one line per server.
func PrintReport(out io.Writer, report []topology.ServerStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATA CENTRE\tROLE\tREPLICA SET\tPORT\tSTATE\tHEALTHY")
	for _, st := range report {
		state := string(st.Runtime)
		if st.Error != "" {
			state += " (" + st.Error + ")"
		}
		rs := st.ReplicaSet
		if rs == "" {
			rs = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%t\n", st.Name, st.DataCentre, st.Role, rs, st.Port, state, st.Healthy)
	}
	_ = w.Flush()
}

// PrintCounts writes the per shard document counts.
func PrintCounts(out io.Writer, namespace string, counts []topology.ShardCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SHARD\tSERVER\tDOCUMENTS IN %s\n", namespace)
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Shard, c.Server, c.Count)
	}
	_ = w.Flush()
}
