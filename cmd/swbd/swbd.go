// Command swbd runs a platform node
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	swb "github.com/haxdai/SWBPlatform-sub000"
	"github.com/haxdai/SWBPlatform-sub000/internal/config"
	"github.com/haxdai/SWBPlatform-sub000/internal/platform"
	"github.com/haxdai/SWBPlatform-sub000/internal/server"
	"github.com/haxdai/SWBPlatform-sub000/internal/status"
	"github.com/pkg/browser"
	"github.com/pkg/profile"
	"github.com/tkw1536/pkglib/perf"
)

func main() {
	st := status.New(os.Stderr, debug)

	if debugProfile != "" {
		defer profile.Start(profile.ProfilePath(debugProfile)).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, st); err != nil {
		st.LogError("swbd", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, st *status.Status) error {
	var cfg *config.Config
	if err := st.DoStage(status.StageConfig, func() (err error) {
		cfg, err = config.Load(configPath, st.Logger())
		return
	}); err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	// listen before loading, so that clients can connect early
	listener, err := server.Listen(cfg.HTTP.Addr, cfg.HTTP.MaxConnections)
	if err != nil {
		return err
	}
	defer listener.Close()

	p, err := platform.Open(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer p.Close()

	for _, arg := range imports {
		model, paths, _ := strings.Cut(arg, "=")
		sources, err := swb.FindSources(strings.Split(paths, ",")...)
		if err != nil {
			return fmt.Errorf("import %q: %w", arg, err)
		}
		for _, source := range sources {
			if err := importFile(ctx, p, model, source); err != nil {
				return err
			}
		}
	}

	if debugServer != "" {
		go listenDebug(st)
	}

	st.Log("finished loading", "took", st.Diff(), "now", perf.Now())

	url := "http://" + listener.Addr().String() + "/"
	if openBrowser {
		if err := browser.OpenURL(url); err != nil {
			st.LogError("open browser", err)
		}
	}

	handler := &server.Server{
		Platform: p,
		ReadOnly: cfg.HTTP.ReadOnlyStores,
		Logger:   st.Logger(),
	}
	return st.DoStage(status.StageServe, func() error {
		return handler.Serve(ctx, listener, cfg.HTTP.ShutdownTimeout)
	})
}

func importFile(ctx context.Context, p *platform.Platform, model string, source swb.Source) error {
	file, err := os.Open(source.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	count, err := p.Import(ctx, model, file, source.Format)
	if err != nil {
		return fmt.Errorf("failed to import %q into %q: %w", source.Path, model, err)
	}
	p.Logger().Info("imported", "model", model, "path", source.Path, "statements", count)
	return nil
}

// importFlag collects repeated -import flags
type importFlag []string

func (i *importFlag) String() string {
	return strings.Join(*i, " ")
}

func (i *importFlag) Set(value string) error {
	model, paths, ok := strings.Cut(value, "=")
	if !ok || model == "" || paths == "" {
		return fmt.Errorf("expected model=path[,path...], got %q", value)
	}
	*i = append(*i, value)
	return nil
}

var configPath string
var addr string
var imports importFlag
var debug bool
var debugProfile string
var debugServer string
var openBrowser bool

func init() {
	var legalFlag bool = false
	flag.BoolVar(&legalFlag, "legal", legalFlag, "Display legal notices and exit")
	defer func() {
		if legalFlag {
			fmt.Print(swb.LegalText())
			os.Exit(0)
		}
	}()

	flag.StringVar(&configPath, "config", configPath, "Path to a YAML configuration file (defaults are used when empty)")
	flag.StringVar(&addr, "addr", addr, "Address to serve on, overriding the configuration")
	flag.Var(&imports, "import", "Import files or directories into a model before serving, as `model=path[,path...]`. May be repeated")
	flag.BoolVar(&debug, "debug", debug, "Enable debug logging")
	flag.StringVar(&debugProfile, "debug-profile", debugProfile, "write out a debugging profile to the given path")
	flag.StringVar(&debugServer, "debug-listen", debugServer, "start a profiling server on the given address")
	flag.BoolVar(&openBrowser, "open", openBrowser, "Open the model browser once loading has finished")

	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "Usage: swbd [-help] [...flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}
}
