package root

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mongodb/mongodb-dc-topology/cmd/topologyctl/cluster"
	"github.com/mongodb/mongodb-dc-topology/cmd/topologyctl/utils"
	"github.com/mongodb/mongodb-dc-topology/cmd/topologyctl/weather"
	"github.com/mongodb/mongodb-dc-topology/pkg/topologyctl/common"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "topologyctl",
	Short: "Run a zone sharded MongoDB cluster spread over simulated data centres",
	Long: `This application creates the servers of a sharded MongoDB cluster in containers,
places them in simulated data centres and pins ranges of the shard key to shards.

Configuration is read from the environment and from a .env file in the working directory.
	`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&common.TopologyFile, "file", "f", "", "Topology document. [optional, default: $TOPOLOGY_FILE or topology.yaml]")

	rootCmd.AddCommand(cluster.UpCmd)
	rootCmd.AddCommand(cluster.StatusCmd)
	rootCmd.AddCommand(cluster.StopCmd)
	rootCmd.AddCommand(cluster.StartCmd)
	rootCmd.AddCommand(cluster.DestroyCmd)
	rootCmd.AddCommand(cluster.ZonesCmd)
	rootCmd.AddCommand(weather.ServeCmd)
	rootCmd.AddCommand(weather.SampleCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalChan
		cancel()
	}()
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		rootCmd.Long += utils.GetBuildInfoString(buildInfo)
	}
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}
