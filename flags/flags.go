package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/Aswintechie/ttnn-performance-dashboard/publisher"
	"github.com/Aswintechie/ttnn-performance-dashboard/service"
	"github.com/Aswintechie/ttnn-performance-dashboard/uploader"
)

const EnvVarPrefix = "ELTWISE_PERF"

var (
	Rerun = &cli.BoolFlag{
		Name:    "rerun",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RERUN"),
		Usage:   "Resume today's latest results and run only tests without a successful measurement",
	}
	Upload = &cli.BoolFlag{
		Name:    "upload",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "UPLOAD"),
		Usage:   "Publish the final results to the dashboard repository",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a YAML file overriding suite and measurement settings",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_DIR"),
		Usage:   "Directory for result artifacts",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Directory the discovery and measurement commands run in",
	}
	UploadMode = &cli.StringFlag{
		Name:    "upload.mode",
		Value:   uploader.ModeAuto,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "UPLOAD_MODE"),
		Usage:   "Upload mechanism: auto, inprocess or subprocess",
	}
	UploadBinary = &cli.StringFlag{
		Name:    "upload.binary",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "UPLOAD_BINARY"),
		Usage:   "Path to the perf-upload binary used in subprocess mode",
	}
	DashboardRepo = &cli.StringFlag{
		Name:    "dashboard.repo",
		Value:   publisher.DefaultRepoURL,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DASHBOARD_REPO"),
		Usage:   "Git URL of the dashboard repository",
	}
	DashboardBranch = &cli.StringFlag{
		Name:    "dashboard.branch",
		Value:   publisher.DefaultBranch,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DASHBOARD_BRANCH"),
		Usage:   "Branch of the dashboard repository to publish to",
	}
	DatabaseURI = &cli.StringFlag{
		Name:    "db.uri",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DB_URI"),
		Usage:   "Postgres connection string for recording final results (disabled when empty)",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   service.DefaultHealthzPort,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Health check server port, served alongside metrics",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Rerun,
	Upload,
	ConfigFile,
	OutputDir,
	WorkDir,
	UploadMode,
	UploadBinary,
	DashboardRepo,
	DashboardBranch,
	DatabaseURI,
	HealthzPort,
}

// UploadFlags are accepted by perf-upload.
var UploadFlags []cli.Flag

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)

	UploadFlags = append([]cli.Flag{DashboardRepo, DashboardBranch}, oplog.CLIFlags(EnvVarPrefix)...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
