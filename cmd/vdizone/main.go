package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/vdizone/cmd/app"
	httpctrl "github.com/Agrid-Dev/vdizone/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/vdizone/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/vdizone/internal/controllers/mqtt"
	"github.com/Agrid-Dev/vdizone/internal/simulator"
	"github.com/Agrid-Dev/vdizone/internal/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("vdizone exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg app.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	svcOpts := []simulator.Option{simulator.WithLogger(logger)}
	if cfg.Store.Enabled {
		st, err := store.Open(ctx, cfg.Store.DSN, cfg.ZoneID)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		svcOpts = append(svcOpts, simulator.WithRecorder(st))
	}

	svc, err := simulator.New(cfg.Simulation.Case, opts, svcOpts...)
	if err != nil {
		return err
	}
	defer svc.Wait()

	g, ctx := errgroup.WithContext(ctx)

	if c := cfg.Controllers.HTTP; c.Enabled {
		srv := httpctrl.New(svc, c.Addr, cfg.ZoneID,
			httpctrl.WithLogger(logger),
			httpctrl.WithStreamInterval(c.StreamInterval))
		logger.Info("http listening", "addr", c.Addr)
		g.Go(func() error { return srv.Run(ctx) })
	}

	if c := cfg.Controllers.MQTT; c.Enabled {
		ctrl, err := mqttctrl.New(svc, mqttctrl.Config{
			ZoneID:          cfg.ZoneID,
			BrokerURL:       c.BrokerURL,
			ClientID:        c.ClientID,
			BaseTopic:       c.BaseTopic,
			QoS:             c.QoS,
			RetainSnapshot:  c.RetainSnapshot,
			PublishInterval: c.PublishInterval,
			Username:        c.Username,
			Password:        c.Password,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return ctrl.Run(ctx) })
	}

	if c := cfg.Controllers.MODBUS; c.Enabled {
		ctrl, err := modbusctrl.New(svc, modbusctrl.Config{
			ZoneID: cfg.ZoneID,
			Addr:   c.Addr,
			UnitID: c.UnitID,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return ctrl.Run(ctx) })
	}

	if cfg.Simulation.RunOnStart {
		if err := svc.Start(ctx, ""); err != nil {
			return err
		}
	}

	return g.Wait()
}
