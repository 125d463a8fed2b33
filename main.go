package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tubecast/tubecast/internal/cache"
	"github.com/tubecast/tubecast/internal/config"
	"github.com/tubecast/tubecast/internal/logging"
	"github.com/tubecast/tubecast/internal/pipeline"
	"github.com/tubecast/tubecast/internal/server"
	"github.com/tubecast/tubecast/internal/server/routes"
	"github.com/tubecast/tubecast/internal/transcode"
	"github.com/tubecast/tubecast/internal/version"
	"github.com/tubecast/tubecast/internal/youtube"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	profile, ok := transcode.Resolve(cfg.Global.Profile)
	if !ok {
		fmt.Fprintf(stdErr, "未知的输出 profile: %s（可用: %v）\n", cfg.Global.Profile, transcode.Keys())
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["listen_port"] = cfg.Global.ListenPort
		fields["episode_limit"] = cfg.Global.EpisodeLimit
		fields["profile"] = profile.Key
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 未指定缓存目录时退回一次性的临时目录：进程退出后缓存即失效，
	// 与显式目录下“重启后缓存仍可命中”的行为区分开。
	cacheDir := cfg.Global.CacheDir
	if cacheDir == "" {
		cacheDir, err = os.MkdirTemp("", "tubecast-cache-")
		if err != nil {
			fmt.Fprintf(stdErr, "创建临时缓存目录失败: %v\n", err)
			return 1
		}
	}

	// CLI 启动遵循“配置 → 缓存 → 外部工具客户端 → 流水线 → Fiber server”
	// 顺序，保证所有请求共享同一份缓存与编排器实例。
	store, err := cache.NewStore(cacheDir)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	client := youtube.NewClient(cfg.Global.YtdlpPath, time.Duration(cfg.Global.FetchTimeout))
	encoder := transcode.NewEncoder(cfg.Global.FfmpegPath, cfg.Global.FfprobePath)

	orchestrator, err := pipeline.New(pipeline.Options{
		Store:        store,
		Metadata:     client,
		Acquirer:     client,
		Encoder:      encoder,
		Logger:       logger,
		Profile:      profile,
		StagingDir:   cfg.Global.StagingDir,
		EpisodeLimit: cfg.Global.EpisodeLimit,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建流水线失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["episode_limit"] = cfg.Global.EpisodeLimit
	fields["cache_dir"] = cacheDir
	fields["profile"] = profile.Key
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, orchestrator, client, cacheDir, profile, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("tubecast", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 TUBECAST_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	// 不在这里补默认文件名：空路径交给 config.Load 的隐式分支处理，
	// 这样纯环境变量部署（文件缺失）也能启动。
	path := os.Getenv("TUBECAST_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, orchestrator *pipeline.Orchestrator, client *youtube.Client, cacheDir string, profile transcode.Profile, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.Register(app, routes.Options{
		Logger:        logger,
		Producer:      orchestrator,
		Metadata:      client,
		EpisodeLimit:  cfg.Global.EpisodeLimit,
		PublicBaseURL: cfg.Global.PublicBaseURL,
		CacheDir:      cacheDir,
		ProfileKey:    profile.Key,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
