package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ClientInfo describes the running client for request headers and `jimmy version`.
type ClientInfo struct {
	Name       string
	Version    string
	StartTime  time.Time
	GoVersion  string
	OS         string
	Arch       string
	BinaryPath string
	Container  bool
}

// DetectClientInfo captures runtime information for the named client.
func DetectClientInfo(name, version string) ClientInfo {
	binaryPath, _ := os.Executable()
	if binaryPath != "" {
		if resolved, err := filepath.EvalSymlinks(binaryPath); err == nil {
			binaryPath = resolved
		}
	}

	return ClientInfo{
		Name:       name,
		Version:    version,
		StartTime:  time.Now().UTC(),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		BinaryPath: binaryPath,
		Container:  inContainer(),
	}
}

// UserAgent formats the info as an HTTP User-Agent value.
func (c ClientInfo) UserAgent() string {
	name := c.Name
	if name == "" {
		name = "jimmy-client"
	}
	version := c.Version
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%s/%s (%s/%s; %s)", name, version, c.OS, c.Arch, c.GoVersion)
}

// inContainer checks the usual docker/containerd markers.
func inContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/self/cgroup"); err == nil {
		cgroup := string(data)
		return strings.Contains(cgroup, "docker") || strings.Contains(cgroup, "containerd")
	}
	return false
}
