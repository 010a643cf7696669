package main

import "context"
import "os"
import "os/signal"
import "syscall"
import "time"

import "github.com/sirgallo/grsfs/pkg/config"
import "github.com/sirgallo/grsfs/pkg/httpservice"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/node"


const NAME = "Main"
var Log = clog.NewCustomLog(NAME)

const shutdownTimeout = 5 * time.Second


func main() {
	cfg, cfgErr := config.Load(os.Args[1:])
	if cfgErr != nil { Log.Fatal("invalid configuration:", cfgErr.Error()) }

	setupLogging(cfg)

	grsfs, nodeErr := node.New(node.NodeOpts{ Config: cfg })
	if nodeErr != nil { Log.Fatal("unable to initialize node:", nodeErr.Error()) }

	startErr := grsfs.Start(context.Background())
	if startErr != nil { Log.Fatal("unable to start node:", startErr.Error()) }

	var httpService *httpservice.HTTPService
	if cfg.HTTPPort > 0 {
		httpService = httpservice.NewHTTPService(&httpservice.HTTPServiceOpts{ Port: cfg.HTTPPort, Node: grsfs })

		_, httpErr := httpService.StartHTTPService()
		if httpErr != nil { Log.Fatal("unable to start http service:", httpErr.Error()) }
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
		case sig := <- signals:
			Log.Info("received", sig.String(), "shutting down")
		case <- grsfs.Left():
			Log.Error("node left the group:", grsfs.Critical().Error())
	}

	if httpService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopErr := httpService.StopHTTPService(ctx)
		if stopErr != nil { Log.Warn("http service did not stop cleanly:", stopErr.Error()) }
	}

	grsfs.Stop()
}

func setupLogging(cfg *config.Config) {
	level, levelErr := clog.ParseLevel(cfg.LogVerbosity)
	if levelErr != nil {
		Log.Warn("unknown log verbosity", cfg.LogVerbosity, "using info")
		level = clog.Info
	}

	if cfg.LogQuiet { level = clog.Error }
	clog.SetLevel(level)

	if cfg.LogDir == "" { return }

	logFile, openErr := clog.OpenLogFile(cfg.LogDir, cfg.ServerAddress, cfg.ServerPort)
	if openErr != nil { Log.Fatal("unable to open log file:", openErr.Error()) }

	clog.SetOutput(logFile)
}
