package config

import "path/filepath"

// Validate 校验全局配置；CacheDir 一旦显式配置必须是绝对路径，否则启动失败。
func (c *Config) Validate() error {
	g := c.Global

	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须位于 1-65535 区间")
	}
	if g.EpisodeLimit <= 0 {
		return newFieldError("EpisodeLimit", "必须为正整数")
	}
	if g.CacheDir != "" && !filepath.IsAbs(g.CacheDir) {
		return newFieldError("CacheDir", "必须是绝对路径")
	}
	if g.StagingDir != "" && !filepath.IsAbs(g.StagingDir) {
		return newFieldError("StagingDir", "必须是绝对路径")
	}
	if g.Profile == "" {
		return newFieldError("Profile", "不能为空")
	}
	if g.YtdlpPath == "" {
		return newFieldError("YtdlpPath", "不能为空")
	}
	if g.FfmpegPath == "" {
		return newFieldError("FfmpegPath", "不能为空")
	}
	return nil
}
