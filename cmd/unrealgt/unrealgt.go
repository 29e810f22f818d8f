package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/framesource"
	"github.com/cyclopcam/unrealgt/server"
	"github.com/cyclopcam/unrealgt/server/config"
)

func main() {
	parser := argparse.NewParser("unrealgt", "Attach ground truth object identity to clusters, using Unreal Engine segmentation renders")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file path (optional)", Default: ""})
	inputDir := parser.String("i", "input", &argparse.Options{Help: "Frame directory, or directory of frame directories", Required: true})
	serve := parser.Flag("", "serve", &argparse.Options{Help: "Keep running the HTTP viewer after all frames are processed", Default: false})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP listen address (eg :8090). Overrides the config file.", Default: ""})
	overlayDir := parser.String("", "overlay-dir", &argparse.Options{Help: "Write the overlay of every frame into this directory", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *overlayDir != "" {
		if err := os.MkdirAll(*overlayDir, 0770); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		cfg.Overlay.Enabled = true
		cfg.Overlay.SaveDir = *overlayDir
	}
	if *serve && cfg.Listen == "" {
		cfg.Listen = ":8090"
	}

	src, err := framesource.NewDirSource(logger, *inputDir)
	if err != nil {
		logger.Errorf("Failed to open input %v: %v", *inputDir, err)
		os.Exit(1)
	}

	srv, err := server.NewServer(logger, cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	if cfg.Listen != "" {
		go func() {
			if err := srv.ListenHTTP(cfg.Listen); err != nil {
				logger.Errorf("ListenHTTP returned: %v", err)
			}
		}()
	}

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	n, err := srv.RunSource(src)
	logger.Infof("Annotated %v of %v frames", n, src.Len())
	if err != nil {
		logger.Errorf("%v", err)
	}

	if *serve && err == nil {
		logger.Infof("All frames processed. Serving results until interrupted.")
		<-srv.ShutdownComplete
	} else {
		srv.Shutdown()
		<-srv.ShutdownComplete
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
