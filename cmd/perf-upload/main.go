package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/exitcodes"
	"github.com/Aswintechie/ttnn-performance-dashboard/flags"
	"github.com/Aswintechie/ttnn-performance-dashboard/publisher"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "perf-upload"
	app.Usage = "Publish an eltwise performance artifact to the dashboard repository"
	app.ArgsUsage = "<results.json>"
	app.Flags = cliapp.ProtectFlags(flags.UploadFlags)
	app.Action = upload
	return app
}

func upload(ctx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())

	if ctx.NArg() != 1 {
		return cli.Exit(fmt.Sprintf("usage: %s %s", ctx.App.Name, ctx.App.ArgsUsage), exitcodes.UploadFailure)
	}
	path := ctx.Args().First()

	p, err := publisher.New(publisher.Config{
		RepoURL: ctx.String(flags.DashboardRepo.Name),
		Branch:  ctx.String(flags.DashboardBranch.Name),
		Log:     logger,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.UploadFailure)
	}

	logger.Info("Uploading results", "path", path, "repo", ctx.String(flags.DashboardRepo.Name))
	if err := p.Upload(ctx.Context, path); err != nil {
		logger.Error("Upload failed", "path", path, "error", err)
		return cli.Exit(err.Error(), exitcodes.UploadFailure)
	}
	logger.Info("Upload completed successfully", "path", path)
	return nil
}
