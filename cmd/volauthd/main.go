// Command volauthd runs the volume authorization daemon: the tenant
// registry, the usage ledger and the authorization engine behind one
// HTTP API.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/authorizer"
	"github.com/volaas/volauth/bolt"
	vhttp "github.com/volaas/volauth/http"
	"github.com/volaas/volauth/ledger"
	"github.com/volaas/volauth/localfs"
	"github.com/volaas/volauth/logger"
	"github.com/volaas/volauth/task"
	"github.com/volaas/volauth/tenant"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("VOLAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "volauthd",
		Short: "volume authorization daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("bolt-path", "volauth.bolt", "path to the boltdb file")
	cmd.Flags().String("store-path", "volumes", "root directory of the local volume store")
	cmd.Flags().String("http-bind-address", ":8086", "bind address of the HTTP API")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "console", "log format (console, json)")
	cmd.Flags().StringSlice("vms", nil, "VM identifiers known to inventory")

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// inventory joins the configured VM list with the datastores the backend
// actually has on disk.
type inventory struct {
	vms     []volauth.VM
	backend *localfs.Backend
}

func (i *inventory) ListVMs(ctx context.Context) ([]volauth.VM, error) {
	return i.vms, nil
}

func (i *inventory) ListDatastores(ctx context.Context) ([]volauth.Datastore, error) {
	return i.backend.ListDatastores(ctx)
}

func run(v *viper.Viper) error {
	var level zapcore.Level
	if err := level.Set(v.GetString("log-level")); err != nil {
		return err
	}
	logConf := logger.Config{
		Format: v.GetString("log-format"),
		Level:  level,
	}
	log, err := logConf.New()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boltStore := bolt.NewKVStore(log.With(zap.String("service", "bolt")), v.GetString("bolt-path"))
	if err := boltStore.Open(ctx); err != nil {
		return err
	}
	defer boltStore.Close()

	usage := ledger.New(boltStore, log.With(zap.String("service", "ledger")))
	if err := usage.Load(ctx); err != nil {
		return err
	}

	backend := localfs.New(v.GetString("store-path"), log.With(zap.String("service", "localfs")))

	inv := &inventory{backend: backend}
	for _, vm := range v.GetStringSlice("vms") {
		inv.vms = append(inv.vms, volauth.VM{ID: volauth.VMID(vm)})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := tenant.NewStore(boltStore,
		tenant.WithStoreLogger(log.With(zap.String("service", "tenant"))))
	svc := tenant.NewService(store, backend, inv, usage,
		tenant.WithLogger(log.With(zap.String("service", "tenant"))))

	tenants := tenant.NewTenantLogger(log.With(zap.String("service", "tenant")),
		tenant.NewTenantMetrics(reg, svc))
	privileges := tenant.NewPrivilegeLogger(log.With(zap.String("service", "privilege")),
		tenant.NewPrivilegeMetrics(reg, svc))

	engine := authorizer.New(store, usage,
		authorizer.WithLogger(log.With(zap.String("service", "authorizer"))),
		authorizer.WithMetrics(reg))

	coordinator := task.NewCoordinator(log.With(zap.String("service", "task")))
	defer coordinator.Close()
	tasks := task.NewService(coordinator, tenants, privileges)

	handler := vhttp.NewHandler(log.With(zap.String("service", "http")), tasks, engine, usage, reg)
	server := vhttp.NewServer(log.With(zap.String("service", "http")), handler)

	addr := v.GetString("http-bind-address")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("listening", zap.String("addr", addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
