package version

import "runtime"

// 以下变量在构建时通过 -ldflags "-X" 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info 构建信息
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get 获取当前构建信息
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String 单行格式，用于启动日志
func (i Info) String() string {
	return i.Version + " (" + i.GitCommit + ") built at " + i.BuildTime + " with " + i.GoVersion
}
