package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
// 配置文件可以不存在：此时仅依赖默认值与环境变量，与原始部署方式保持兼容。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	bindEnvOverrides(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		missing := errors.As(err, &pathErr)
		if !missing || explicit {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.CacheDir != "" {
		abs, err := filepath.Abs(cfg.Global.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.CacheDir = abs
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("EpisodeLimit", 20)
	v.SetDefault("CacheDir", "")
	v.SetDefault("StagingDir", "")
	v.SetDefault("Debug", false)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("YtdlpPath", "yt-dlp")
	v.SetDefault("FfmpegPath", "ffmpeg")
	v.SetDefault("FfprobePath", "ffprobe")
	v.SetDefault("Profile", "mp3-320")
	v.SetDefault("PublicBaseURL", "")
	v.SetDefault("FetchTimeout", "10m")
}

// bindEnvOverrides 保留原始部署使用的裸环境变量名（PORT/EPISODE_LIMIT/DEBUG），
// 同时提供带 TUBECAST_ 前缀的规范写法。
func bindEnvOverrides(v *viper.Viper) {
	_ = v.BindEnv("ListenPort", "TUBECAST_PORT", "PORT")
	_ = v.BindEnv("EpisodeLimit", "TUBECAST_EPISODE_LIMIT", "EPISODE_LIMIT")
	_ = v.BindEnv("CacheDir", "TUBECAST_CACHE_DIR", "CACHE_DIR")
	_ = v.BindEnv("StagingDir", "TUBECAST_STAGING_DIR")
	_ = v.BindEnv("Debug", "TUBECAST_DEBUG", "DEBUG")
	_ = v.BindEnv("LogLevel", "TUBECAST_LOG_LEVEL")
	_ = v.BindEnv("LogFilePath", "TUBECAST_LOG_FILE")
	_ = v.BindEnv("YtdlpPath", "TUBECAST_YTDLP_PATH")
	_ = v.BindEnv("FfmpegPath", "TUBECAST_FFMPEG_PATH")
	_ = v.BindEnv("FfprobePath", "TUBECAST_FFPROBE_PATH")
	_ = v.BindEnv("Profile", "TUBECAST_PROFILE")
	_ = v.BindEnv("PublicBaseURL", "TUBECAST_PUBLIC_BASE_URL")
	_ = v.BindEnv("FetchTimeout", "TUBECAST_FETCH_TIMEOUT")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 3000
	}
	if g.EpisodeLimit == 0 {
		g.EpisodeLimit = 20
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.YtdlpPath == "" {
		g.YtdlpPath = "yt-dlp"
	}
	if g.FfmpegPath == "" {
		g.FfmpegPath = "ffmpeg"
	}
	if g.FfprobePath == "" {
		g.FfprobePath = "ffprobe"
	}
	if g.Profile == "" {
		g.Profile = "mp3-320"
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(10 * time.Minute)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
