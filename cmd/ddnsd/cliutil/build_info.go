package cliutil

import (
	"fmt"
	"runtime"

	"github.com/jxo-me/ddnsd/core/logger"
)

type BuildInfo struct {
	GoOS         string `json:"go_os"`
	GoVersion    string `json:"go_version"`
	GoArch       string `json:"go_arch"`
	BuildType    string `json:"build_type"`
	DDNSDVersion string `json:"ddnsd_version"`
}

func GetBuildInfo(buildType, version string) *BuildInfo {
	return &BuildInfo{
		GoOS:         runtime.GOOS,
		GoVersion:    runtime.Version(),
		GoArch:       runtime.GOARCH,
		BuildType:    buildType,
		DDNSDVersion: version,
	}
}

func (bi *BuildInfo) Log(log logger.ILogger) {
	log.Infof("Version %s%s", bi.DDNSDVersion, bi.GetBuildTypeMsg())
	log.Infof("GOOS: %s, GOVersion: %s, GoArch: %s", bi.GoOS, bi.GoVersion, bi.GoArch)
}

func (bi *BuildInfo) GetBuildTypeMsg() string {
	if bi.BuildType == "" {
		return ""
	}
	return fmt.Sprintf(" with %s", bi.BuildType)
}

func (bi *BuildInfo) String() string {
	return fmt.Sprintf("ddnsd %s%s (%s %s/%s)", bi.DDNSDVersion, bi.GetBuildTypeMsg(), bi.GoVersion, bi.GoOS, bi.GoArch)
}
