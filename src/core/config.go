package core

import (
	"os"
	"runtime"

	"github.com/please-build/gcfg"
)

// OsArch is the os/arch pair, e.g. linux_amd64.
const OsArch = runtime.GOOS + "_" + runtime.GOARCH

// ConfigFileName is the checked-in repo config file name.
const ConfigFileName = ".kilnconfig"

// ArchConfigFileName overrides ConfigFileName for one architecture.
const ArchConfigFileName = ".kilnconfig_" + OsArch

// LocalConfigFileName is not normally checked in; it overrides settings on
// the local machine only.
const LocalConfigFileName = ".kilnconfig.local"

// MachineConfigFileName can override settings for a whole machine, e.g. a
// build farm node with different caching behaviour.
const MachineConfigFileName = "/etc/kilnconfig"

// Configuration holds every setting loaded from the layered .kilnconfig
// files. Fields are filled in by DefaultConfiguration and then overridden,
// file by file, in ReadConfigFiles.
type Configuration struct {
	Kiln struct {
		NumThreads       int    `help:"Number of parallel build operations to run. Overridden by -j if passed."`
		FailureRetries   int    `help:"Number of times to retry a target's build step before giving up."`
		BuildFileName    []string `help:"Names kiln looks for as package build files, in order."`
		OutRoot          string `help:"Directory that caches and temporary build output live under."`
	} `help:"Settings controlling the build engine itself."`
	Cache struct {
		Dir        string `help:"Directory the incremental build cache is persisted under."`
		Compress   bool   `help:"Not read: the persisted cache store is always xz-compressed."`
	} `help:"Settings for the incremental up-to-date cache."`
	Metrics struct {
		PushGatewayURL string `help:"Prometheus pushgateway URL. Empty disables metrics entirely."`
		PushFrequency  int    `help:"Seconds between metrics pushes."`
	} `help:"Settings for reporting build metrics to Prometheus."`
	Display struct {
		SystemStats bool `help:"Not read: the executor always samples system load for dispatch backpressure, and nothing is shown."`
	} `help:"Settings controlling build output."`
}

// DefaultConfiguration returns a Configuration with every field set to its
// out-of-the-box default.
func DefaultConfiguration() *Configuration {
	config := Configuration{}
	config.Kiln.NumThreads = runtime.GOMAXPROCS(0) + 2
	config.Kiln.FailureRetries = 0
	config.Kiln.BuildFileName = []string{"BUILD.kiln"}
	config.Kiln.OutRoot = "kiln-out"
	config.Cache.Dir = "kiln-out/.cache"
	config.Cache.Compress = true
	config.Metrics.PushFrequency = 30
	return &config
}

func readConfigFile(config *Configuration, filename string) error {
	log.Debugf("reading config from %s...", filename)
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil
	} else if gcfg.FatalOnly(err) != nil {
		return err
	} else if err != nil {
		log.Warningf("error in config file %s: %s", filename, err)
	}
	return nil
}

// ReadConfigFiles loads every config file in order, merging values as it
// goes so later files override earlier ones; a missing file is not an error.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	return config, nil
}

// ConfigFiles returns the standard layered config file search path, rooted
// at repoRoot.
func ConfigFiles(repoRoot string) []string {
	return []string{
		MachineConfigFileName,
		repoRoot + "/" + ConfigFileName,
		repoRoot + "/" + ArchConfigFileName,
		repoRoot + "/" + LocalConfigFileName,
	}
}
