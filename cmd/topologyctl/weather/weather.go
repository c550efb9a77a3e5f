package weather

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/logging"
	"github.com/mongodb/mongodb-dc-topology/pkg/topologyctl/common"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather/api"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather/client"
)

var clearSample bool

func init() {
	SampleCmd.Flags().BoolVar(&clearSample, "clear", false, "Delete the sample records again once they were queried. [optional default: false]")
}

// ServeCmd represents the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the weather API on top of the cluster routers",
	Long: `'serve' answers POST /weather/get with the newest record of the station nearest to a location and stores
records sent to POST /weather/post. Requests go through the first healthy router. Metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := common.NewBuiltSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		store, err := newStore(s)
		if err != nil {
			return err
		}
		defer store.Close()

		return api.NewServer(s.Config.ApiAddr, store, s.Config.Pprof, s.Log).Run(cmd.Context())
	},
}

// SampleCmd represents the sample command
var SampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Load the sample records through the weather API and query them",
	Long: `'sample' posts today's and yesterday's records of Ottawa and Toronto to the weather API, then asks for
the weather in Windsor and Cornwall. Windsor is closest to Toronto and Cornwall to Ottawa; both answers must be
today's records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}
		log, closeLog, err := logging.Setup()
		if err != nil {
			return err
		}
		defer closeLog()

		ids, err := RunSample(cmd.Context(), cmd.OutOrStdout(), client.New(cfg.ApiUrl, log))
		if err != nil || !clearSample {
			return err
		}

		s, err := common.NewBuiltSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		store, err := newStore(s)
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.Delete(cmd.Context(), ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d sample records\n", n)
		return nil
	},
}

func newStore(s *common.Session) (*weather.RoutedStore, error) {
	store, err := weather.NewRoutedStore(s.Orchestrator, s.Config.RouterCacheSize, s.Config.AdminTimeout, s.Log)
	if err != nil {
		return nil, err
	}
	return store.WithNamespace(s.Topology.Sharding.Database, s.Topology.Sharding.Collection), nil
}

// WeatherAPI is what the sample needs from the API client.
type WeatherAPI interface {
	Get(ctx context.Context, lon, lat float64) (weather.Record, error)
	Post(ctx context.Context, rec weather.Record) (weather.InsertResult, error)
}

// RunSample posts the sample records and queries Windsor and Cornwall. It returns the ids of the inserted records.
func RunSample(ctx context.Context, out io.Writer, c WeatherAPI) ([]string, error) {
	var ids []string
	for _, rec := range weather.SampleRecords() {
		res, err := c.Post(ctx, rec)
		if err != nil {
			return ids, xerrors.Errorf("failed to post %v %v: %w", rec.Location, rec.DateTime, err)
		}
		zap.S().Debugw("Sample record stored", "location", rec.Location, "dateTime", rec.DateTime, "router", res.Router)
		fmt.Fprintf(out, "Stored %v %v as %s through %s\n", rec.Location, rec.DateTime, res.ID, res.Router)
		ids = append(ids, res.ID)
	}

	queries := []struct {
		name  string
		point weather.GeoPoint
	}{
		{name: "WINDSOR", point: weather.Windsor},
		{name: "CORNWALL", point: weather.Cornwall},
	}
	for _, q := range queries {
		rec, err := c.Get(ctx, q.point.Longitude(), q.point.Latitude())
		if err != nil {
			return ids, xerrors.Errorf("failed to get the weather in %s: %w", q.name, err)
		}
		distance := 0.0
		if rec.DistanceToWeatherStation != nil {
			distance = *rec.DistanceToWeatherStation
		}
		fmt.Fprintf(out, "Weather in %s: %v %v (station %.0f km away)\n", q.name, rec.Location, rec.DateTime, distance/1000)
	}
	return ids, nil
}
