package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
	"github.com/spf13/pflag"
)

// config holds the settings of a replay.
type config struct {
	TLBSize     int
	NumFrames   int
	PFNBits     uint8
	VPNBits     uint8
	Record      string
	MonitorPort int
	Monitor     bool
	MonitorWait bool
	OpenBrowser bool
	FailFast    bool
	Verbose     bool
}

func defaultConfig() config {
	return config{
		TLBSize:   5,
		NumFrames: 9,
		PFNBits:   16,
		VPNBits:   8,
	}
}

// envSetting binds an environment variable to a flag.
type envSetting struct {
	env  string
	flag string
}

var envSettings = []envSetting{
	{"MMUSIM_TLB_SIZE", "tlb-size"},
	{"MMUSIM_FRAMES", "frames"},
	{"MMUSIM_PFN_BITS", "pfn-bits"},
	{"MMUSIM_VPN_BITS", "vpn-bits"},
	{"MMUSIM_RECORD", "record"},
	{"MMUSIM_MONITOR", "monitor"},
	{"MMUSIM_MONITOR_PORT", "monitor-port"},
	{"MMUSIM_MONITOR_WAIT", "monitor-wait"},
}

func registerConfigFlags(flags *pflag.FlagSet) {
	d := defaultConfig()

	flags.Int("tlb-size", d.TLBSize, "Number of TLB entries")
	flags.Int("frames", d.NumFrames, "Number of physical frames")
	flags.Uint8("pfn-bits", d.PFNBits,
		"Physical address bits used for the frame number")
	flags.Uint8("vpn-bits", d.VPNBits,
		"Virtual address bits used for the page number")
	flags.String("record", "",
		"Record every translation into a SQLite database at the given "+
			"path (without the .sqlite3 suffix) or into a clickhouse:// DSN")
	flags.Bool("monitor", false, "Serve the MMU status over HTTP")
	flags.Int("monitor-port", 0,
		"Port of the monitoring server, 0 for a random port")
	flags.Bool("monitor-wait", false,
		"Keep serving the monitor after the replay until interrupted")
	flags.Bool("open-browser", false,
		"Open the status page in a browser when monitoring")
	flags.Bool("fail-fast", false,
		"Stop at the first address that cannot be translated")
	flags.BoolP("verbose", "v", false, "Log every translation to stderr")
}

// loadEnvFile loads the MMUSIM_* settings of a .env file into the process
// environment. A missing file is not an error. Variables that are already
// set are not overridden.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// applyEnv copies environment variables into the flags that were not set on
// the command line.
func applyEnv(flags *pflag.FlagSet, lookup func(string) (string, bool)) error {
	for _, s := range envSettings {
		value, ok := lookup(s.env)
		if !ok || flags.Changed(s.flag) {
			continue
		}

		err := flags.Set(s.flag, value)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", s.env, value, err)
		}
	}

	return nil
}

func configFromFlags(flags *pflag.FlagSet) (config, error) {
	err := applyEnv(flags, os.LookupEnv)
	if err != nil {
		return config{}, err
	}

	c := config{}
	c.TLBSize, _ = flags.GetInt("tlb-size")
	c.NumFrames, _ = flags.GetInt("frames")
	c.PFNBits, _ = flags.GetUint8("pfn-bits")
	c.VPNBits, _ = flags.GetUint8("vpn-bits")
	c.Record, _ = flags.GetString("record")
	c.Monitor, _ = flags.GetBool("monitor")
	c.MonitorPort, _ = flags.GetInt("monitor-port")
	c.MonitorWait, _ = flags.GetBool("monitor-wait")
	c.OpenBrowser, _ = flags.GetBool("open-browser")
	c.FailFast, _ = flags.GetBool("fail-fast")
	c.Verbose, _ = flags.GetBool("verbose")

	return c, nil
}

func (c config) builder() mmu.Builder {
	return mmu.MakeBuilder().
		WithTLBSize(c.TLBSize).
		WithNumFrames(c.NumFrames).
		WithPFNBits(c.PFNBits).
		WithVPNBits(c.VPNBits)
}
