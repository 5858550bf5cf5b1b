// Command discover runs one discovery pass from the terminal and
// prints the outcome as JSON. Useful for trying out source and
// threshold settings without standing up the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"discoveryserver/app"
	"discoveryserver/config"
	"discoveryserver/types"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config file")
	query := flag.String("query", "", "discovery query, e.g. \"lagos restaurants\"")
	sourcesFlag := flag.String("sources", "", "comma-separated source override (api,scraping,social)")
	persist := flag.Bool("persist", false, "save accepted candidates to the database")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: discover -query \"lagos restaurants\" [-sources api,scraping] [-persist]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to assemble application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	runConfig := application.RunConfig
	if *sourcesFlag != "" {
		runConfig.EnabledSources = nil
		for _, name := range strings.Split(*sourcesFlag, ",") {
			runConfig.EnabledSources = append(runConfig.EnabledSources,
				types.DiscoverySource(strings.TrimSpace(name)))
		}
	}

	result, err := application.Orchestrator.Run(context.Background(), *query, runConfig)
	if err != nil {
		slog.Error("discovery run failed", "error", err)
		os.Exit(1)
	}

	if *persist && len(result.Accepted) > 0 {
		if err := application.Locations.SaveCandidates(context.Background(), result.Accepted); err != nil {
			slog.Error("failed to persist accepted candidates", "error", err)
			os.Exit(1)
		}
		slog.Info("accepted candidates saved", "count", len(result.Accepted))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		slog.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
}
